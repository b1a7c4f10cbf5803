// Package supervisor spawns the agent CLI subprocess, enforces its
// timeout, retries through a CLI-flag-rejection fallback protocol,
// persists the unredacted audit trail, and derives the session's final
// deliverables (redacted output, blockers, changed files, artifacts).
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/workspace/agent-gateway/internal/artifactindex"
	"github.com/workspace/agent-gateway/internal/blockers"
	"github.com/workspace/agent-gateway/internal/changedetector"
	"github.com/workspace/agent-gateway/internal/redact"
	"github.com/workspace/agent-gateway/internal/store"
)

const (
	defaultGrace = 5 * time.Second
	outputMarker = "\n--- STDERR ---\n"
)

var unknownFlagRe = regexp.MustCompile(`(?i)unknown|unrecognized|not recognized|invalid (option|flag)`)

var testMarkerRe = regexp.MustCompile(`PASS|FAIL|✓|✗|Tests:|Test Suites:`)

// Input describes one supervised run.
type Input struct {
	SessionID    string
	Goal         string
	Prompt       string
	Workspace    string
	SessionDir   string
	AllowedTools []string
	Timeout      time.Duration
	GraceSecs    time.Duration
	AgentBinary  string
	Cancelled    func() bool
	OnProgress   func(turnsCompleted int, bl []blockers.Blocker)
}

// Result is handed to the caller for the final SessionStore.UpdateState patch.
type Result struct {
	Status         store.Status
	ErrorSummary   *string
	TurnsCompleted int
	CostUSD        *float64
	Blockers       []store.Blocker
	FilesChanged   []string
	Artifacts      []store.Artifact
	FallbackEvents []store.FallbackEvent
}

// cliOutput is the structured JSON object the agent CLI prints to stdout
// on success.
type cliOutput struct {
	TurnCount      *int     `json:"turn_count"`
	TurnsCompleted *int     `json:"turns_completed"`
	CostUSD        *float64 `json:"cost_usd"`
	Usage          *struct {
		Cost *float64 `json:"cost"`
	} `json:"usage"`
}

// Run executes the full state sequence described in the component design
// and returns the final result. It never panics on subprocess failure —
// every failure mode resolves to a Result with status "failed".
func Run(ctx context.Context, in Input) (Result, error) {
	grace := in.GraceSecs
	if grace <= 0 {
		grace = defaultGrace
	}

	turnDir := filepath.Join(in.SessionDir, "turns", "0001")
	outDir := filepath.Join(in.SessionDir, "out")
	if err := os.MkdirAll(turnDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("materialize turn directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("materialize out directory: %w", err)
	}
	artifactsDir := store.ArtifactsDir(in.Workspace)
	_ = os.MkdirAll(artifactsDir, 0o755) // best-effort per spec

	var fallbacks []store.FallbackEvent

	args, dropAllowedTools := primaryArgs(in.Prompt, in.AllowedTools)
	writeRequestRecord(turnDir, args, false)

	result, err := spawn(in.AgentBinary, args, in.Workspace, in.SessionID, in.Timeout, grace)
	if err != nil {
		return Result{}, fmt.Errorf("spawn: %w", err)
	}

	if result.ExitCode != 0 && !result.TimedOut && !dropAllowedTools && matchesAllowedToolsFlag(result.Stderr) {
		fallbacks = append(fallbacks, store.FallbackEvent{
			Time:           time.Now().UTC(),
			AttemptedFlag:  "--allowedTools",
			Reason:         "subprocess rejected the allowed-tools flag",
			FallbackAction: "retried without --allowedTools",
		})
		args, _ = primaryArgs(in.Prompt, nil)
		dropAllowedTools = true
		writeRequestRecord(turnDir, args, true)
		result, err = spawn(in.AgentBinary, args, in.Workspace, in.SessionID, in.Timeout, grace)
		if err != nil {
			return Result{}, fmt.Errorf("spawn (fallback 1): %w", err)
		}
	}

	if result.ExitCode != 0 && !result.TimedOut && unknownFlagRe.Match(result.Stderr) {
		fallbacks = append(fallbacks, store.FallbackEvent{
			Time:           time.Now().UTC(),
			AttemptedFlag:  "--output-format",
			Reason:         "subprocess rejected the structured-output flag",
			FallbackAction: "retried with --print, dropping --output-format",
		})
		args = printFallbackArgs(in.Prompt, in.AllowedTools, dropAllowedTools)
		writeRequestRecord(turnDir, args, true)
		result, err = spawn(in.AgentBinary, args, in.Workspace, in.SessionID, in.Timeout, grace)
		if err != nil {
			return Result{}, fmt.Errorf("spawn (fallback 2): %w", err)
		}
	}

	_ = os.WriteFile(filepath.Join(turnDir, "stdout.log"), result.Stdout, 0o644)
	_ = os.WriteFile(filepath.Join(turnDir, "stderr.log"), result.Stderr, 0o644)

	turnsCompleted := 1
	var costUSD *float64
	var parsed cliOutput
	if err := json.Unmarshal(result.Stdout, &parsed); err == nil {
		if data, err := json.MarshalIndent(parsed, "", "  "); err == nil {
			_ = os.WriteFile(filepath.Join(turnDir, "cli_output.json"), data, 0o644)
		}
		if parsed.TurnsCompleted != nil {
			turnsCompleted = *parsed.TurnsCompleted
		} else if parsed.TurnCount != nil {
			turnsCompleted = *parsed.TurnCount
		}
		if parsed.CostUSD != nil {
			costUSD = parsed.CostUSD
		} else if parsed.Usage != nil && parsed.Usage.Cost != nil {
			costUSD = parsed.Usage.Cost
		}
	}

	rawOutput := string(result.Stdout) + outputMarker + string(result.Stderr)
	redactedOutput := redact.Redact(rawOutput)
	extractedBlockers := blockers.Extract(redactedOutput)
	if len(extractedBlockers) > 10 {
		extractedBlockers = extractedBlockers[:10]
	}
	storeBlockers := toStoreBlockers(extractedBlockers)

	if in.Cancelled != nil && in.Cancelled() {
		return Result{}, nil
	}

	if in.OnProgress != nil {
		in.OnProgress(turnsCompleted, extractedBlockers)
	}

	filesChanged := changedetector.Detect(ctx, in.Workspace)
	artifactEntries, _ := artifactindex.Index(artifactsDir)
	storeArtifacts := toStoreArtifacts(artifactEntries)

	patchDiff := gitDiffAgainstHEAD(ctx, in.Workspace)

	status := store.StatusDone
	var errorSummary *string
	if result.TimedOut {
		status = store.StatusFailed
		s := "Worker timed out"
		errorSummary = &s
	} else if result.ExitCode != 0 {
		status = store.StatusFailed
		s := fmt.Sprintf("Worker exited with code %d", result.ExitCode)
		errorSummary = &s
	}

	writeOutputSet(outDir, in.Goal, status, turnsCompleted, costUSD, extractedBlockers, patchDiff, storeArtifacts, rawOutput)

	return Result{
		Status:         status,
		ErrorSummary:   errorSummary,
		TurnsCompleted: turnsCompleted,
		CostUSD:        costUSD,
		Blockers:       storeBlockers,
		FilesChanged:   filesChanged,
		Artifacts:      storeArtifacts,
		FallbackEvents: fallbacks,
	}, nil
}

func primaryArgs(prompt string, allowedTools []string) (args []string, droppedAllowedTools bool) {
	args = []string{"-p", prompt, "--output-format", "json"}
	if len(allowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(allowedTools, ","))
		return args, false
	}
	return args, true
}

func printFallbackArgs(prompt string, allowedTools []string, alreadyDropped bool) []string {
	args := []string{"--print", prompt}
	if !alreadyDropped && len(allowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(allowedTools, ","))
	}
	return args
}

func matchesAllowedToolsFlag(stderr []byte) bool {
	if !unknownFlagRe.Match(stderr) {
		return false
	}
	lower := strings.ToLower(string(stderr))
	return strings.Contains(lower, "allowedtools") || strings.Contains(lower, "allowed-tools") || strings.Contains(lower, "allowed_tools")
}

func writeRequestRecord(turnDir string, args []string, isFallback bool) {
	redactedArgs := make([]string, len(args))
	copy(redactedArgs, args)
	for i := 0; i < len(redactedArgs)-1; i++ {
		if redactedArgs[i] == "-p" || redactedArgs[i] == "--print" {
			redactedArgs[i+1] = "<prompt redacted>"
		}
	}
	record := map[string]any{
		"args":        redactedArgs,
		"is_fallback": isFallback,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(turnDir, "request.json"), data, 0o644)
}

func toStoreBlockers(in []blockers.Blocker) []store.Blocker {
	out := make([]store.Blocker, len(in))
	for i, b := range in {
		out[i] = store.Blocker{Description: b.Description, File: b.File, LineRange: b.LineRange}
	}
	return out
}

func toStoreArtifacts(in []artifactindex.Entry) []store.Artifact {
	out := make([]store.Artifact, len(in))
	for i, a := range in {
		out[i] = store.Artifact{Name: a.Name, Path: a.Path, Bytes: a.Bytes, SHA256: a.SHA256}
	}
	return out
}

func writeOutputSet(outDir, goal string, status store.Status, turns int, costUSD *float64, bl []blockers.Blocker, patchDiff string, artifacts []store.Artifact, rawOutput string) {
	_ = os.WriteFile(filepath.Join(outDir, "patch.diff"), []byte(patchDiff), 0o644)

	var b strings.Builder
	fmt.Fprintf(&b, "# Task Summary\n\n")
	fmt.Fprintf(&b, "**Goal:** %s\n\n", goal)
	fmt.Fprintf(&b, "**Status:** %s\n\n", status)
	fmt.Fprintf(&b, "**Turns completed:** %d\n\n", turns)
	if costUSD != nil {
		fmt.Fprintf(&b, "**Cost (USD):** %.4f\n\n", *costUSD)
	} else {
		fmt.Fprintf(&b, "**Cost (USD):** unknown\n\n")
	}
	if len(bl) > 0 {
		fmt.Fprintf(&b, "## Blockers\n\n")
		for _, blk := range bl {
			fmt.Fprintf(&b, "- %s:%s — %s\n", blk.File, blk.LineRange, blk.Description)
		}
	}
	if len(artifacts) > 0 {
		fmt.Fprintf(&b, "## Artifacts\n\n")
		for _, a := range artifacts {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Name, humanize.Bytes(uint64(a.Bytes)))
		}
	}
	_ = os.WriteFile(filepath.Join(outDir, "summary.md"), []byte(b.String()), 0o644)

	artifactsJSON, err := json.MarshalIndent(map[string]any{"artifacts": artifacts}, "", "  ")
	if err == nil {
		_ = os.WriteFile(filepath.Join(outDir, "artifacts.json"), artifactsJSON, 0o644)
	}

	if testMarkerRe.MatchString(rawOutput) {
		lines := strings.Split(rawOutput, "\n")
		var matched []string
		for _, line := range lines {
			if testMarkerRe.MatchString(line) {
				matched = append(matched, line)
				if len(matched) >= 100 {
					break
				}
			}
		}
		_ = os.WriteFile(filepath.Join(outDir, "test_report.md"), []byte(strings.Join(matched, "\n")), 0o644)
	}
}
