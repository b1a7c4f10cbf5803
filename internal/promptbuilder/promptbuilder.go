// Package promptbuilder assembles the fixed template handed to the agent
// subprocess and screens operator- and caller-supplied text for
// prompt-injection patterns before it is ever interpolated.
package promptbuilder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/workspace/agent-gateway/internal/errs"
)

const maxAppendBytes = 2048

const baseTemplate = `You are operating inside a mediated workspace. Follow the goal below exactly and stay within the stated constraints.

Goal:
%s

Workspace:
%s

Constraints:
%s
`

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(the\s+)?previous`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?instructions`),
	regexp.MustCompile(`(?i)\bexfiltrate\b`),
	regexp.MustCompile(`(?i)\b(read|cat|open)\s+/etc/(passwd|shadow)\b`),
	regexp.MustCompile(`(?i)\b(read|cat|open)\s+~?/\.ssh/`),
}

// Digest is the stable identifier of baseTemplate, recorded in task.json so
// deployments can tell which prompt a past session saw.
var Digest = computeDigest()

func computeDigest() string {
	sum := sha256.Sum256([]byte(baseTemplate))
	return hex.EncodeToString(sum[:])[:16]
}

// Build validates goal and the optional operator append against the
// injection-pattern set, then renders the fixed template.
func Build(goal, workspace, appendText string, constraints []string) (string, error) {
	if len(appendText) > maxAppendBytes {
		return "", errs.New(errs.KindInjectionBlocked, "prompt append exceeds maximum size of 2048 bytes")
	}

	if matched := matchesInjection(goal); matched != "" {
		return "", errs.New(errs.KindInjectionBlocked, "goal matched an injection pattern: "+matched)
	}
	if matched := matchesInjection(appendText); matched != "" {
		return "", errs.New(errs.KindInjectionBlocked, "prompt append matched an injection pattern: "+matched)
	}

	constraintsText := "(none)"
	if len(constraints) > 0 || appendText != "" {
		lines := make([]string, 0, len(constraints)+1)
		for _, c := range constraints {
			lines = append(lines, "- "+c)
		}
		if appendText != "" {
			lines = append(lines, "- "+appendText)
		}
		constraintsText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(baseTemplate, goal, workspace, constraintsText), nil
}

func matchesInjection(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return re.String()
		}
	}
	return ""
}
