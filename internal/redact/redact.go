// Package redact implements the three-pass secret redactor: a pure
// function that replaces secret-bearing substrings with fixed opaque
// markers while preserving surrounding bytes. It is applied to every
// piece of text leaving the server boundary and never to the on-disk
// audit logs.
package redact

import (
	"regexp"
	"strings"
)

const (
	markerPrivateKeyBlock = "<REDACTED_PRIVATE_KEY_BLOCK>"
	markerCertBlock       = "<REDACTED_CERT_BLOCK>"
	markerJWT             = "<REDACTED_JWT>"
)

// Pass 1: block-level PEM/SSH private key and certificate blocks.
var (
	privateKeyBlockRe = regexp.MustCompile(`(?s)-----BEGIN ([A-Z0-9 ]*PRIVATE KEY)-----.*?-----END ([A-Z0-9 ]*PRIVATE KEY)-----`)
	certBlockRe       = regexp.MustCompile(`(?s)-----BEGIN CERTIFICATE-----.*?-----END CERTIFICATE-----`)
)

// Pass 2: token-level patterns, checked in this fixed order.
var (
	jwtRe        = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)
	anthropicRe  = regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{10,}\b`)
	genericSkRe  = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)
	githubPatRe  = regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_-]{20,}\b`)
	githubPfxRe  = regexp.MustCompile(`\bgh[posru]_[A-Za-z0-9]{10,}\b`)
	slackRe      = regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{6,}\b`)
	awsKeyRe     = regexp.MustCompile(`\bA[SK]IA[0-9A-Z]{16}\b`)
	bearerTokRe  = regexp.MustCompile(`\bBearer\s+([A-Za-z0-9_\-.=+/]{20,})\b`)
)

// Pass 3: key/value-level patterns.
var (
	jsonKVRe = regexp.MustCompile(`(?i)"(private_key|client_secret|secret_key|api_key|access_token|refresh_token)"\s*:\s*"([^"]*)"`)
	envKVRe  = regexp.MustCompile(`(?i)\b([A-Z0-9_]*(?:PASSWORD|PASSWD|SECRET|TOKEN|API_KEY|ACCESS_KEY|PRIVATE_KEY)[A-Z0-9_]*)=(\S{6,})`)
)

// Redact returns text with every recognized secret-bearing substring
// replaced by a fixed opaque marker. It is idempotent: Redact(Redact(x)) == Redact(x).
func Redact(text string) string {
	out := text

	// Pass 1: block-level, non-greedy, multiline.
	out = privateKeyBlockRe.ReplaceAllString(out, markerPrivateKeyBlock)
	out = certBlockRe.ReplaceAllString(out, markerCertBlock)

	// Pass 2: token-level, first match wins per locus, in this fixed order.
	// JWT runs before Bearer so a JWT carried in an Authorization header is
	// tagged as a JWT rather than a generic bearer token.
	out = jwtRe.ReplaceAllString(out, markerJWT)
	out = anthropicRe.ReplaceAllString(out, "sk-ant-***REDACTED***")
	out = genericSkRe.ReplaceAllString(out, "sk-***REDACTED***")
	out = githubPatRe.ReplaceAllString(out, "github_pat_***REDACTED***")
	out = githubPfxRe.ReplaceAllStringFunc(out, func(m string) string {
		if len(m) <= 4 {
			return m
		}
		return m[:4] + "***REDACTED***"
	})
	out = slackRe.ReplaceAllStringFunc(out, func(m string) string {
		if len(m) <= 5 {
			return m
		}
		return m[:5] + "***REDACTED***"
	})
	out = awsKeyRe.ReplaceAllStringFunc(out, func(m string) string {
		return m[:4] + "***REDACTED***"
	})
	out = bearerTokRe.ReplaceAllString(out, "Bearer <REDACTED>")

	// Pass 3: key/value-level, case-insensitive. Skip spans that already
	// contain the literal "REDACTED" to avoid re-redacting pass 2's output.
	out = jsonKVRe.ReplaceAllStringFunc(out, func(m string) string {
		if strings.Contains(m, "REDACTED") {
			return m
		}
		sub := jsonKVRe.FindStringSubmatch(m)
		return `"` + sub[1] + `": "<REDACTED>"`
	})
	out = envKVRe.ReplaceAllStringFunc(out, func(m string) string {
		if strings.Contains(m, "REDACTED") {
			return m
		}
		sub := envKVRe.FindStringSubmatch(m)
		return sub[1] + "=<REDACTED>"
	})

	return out
}
