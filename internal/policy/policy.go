// Package policy validates and sanitizes incoming task submissions before
// they reach the prompt builder or session store.
package policy

import (
	"path/filepath"
	"strings"

	"github.com/workspace/agent-gateway/internal/errs"
	"github.com/workspace/agent-gateway/internal/pathguard"
)

const (
	maxGoalBytes       = 4096
	defaultTurnsMax    = 20
	defaultTimeoutSecs = 600
)

// Submission is the raw, client-supplied task body.
type Submission struct {
	Goal           string   `json:"goal"`
	WorkspaceRoot  string   `json:"workspace_root"`
	AllowedTools   []string `json:"allowed_tools"`
	TurnsMax       *int     `json:"turns_max"`
	TimeoutSeconds *int     `json:"timeout_seconds"`
}

// Sanitized is the validated, canonicalized task ready for prompt building
// and persistence.
type Sanitized struct {
	Goal           string
	WorkspaceRoot  string
	AllowedTools   []string
	TurnsMax       int
	TimeoutSeconds int
}

// Limits bounds the clamps Policy applies; both default from configuration.
type Limits struct {
	TurnsCap   int
	TimeoutCap int
}

// Validate checks sub against the policy rules, collecting every violation
// before returning rather than failing on the first. allowedRoots gates
// workspace_root; limits bounds turns_max/timeout_seconds.
func Validate(sub Submission, allowedRoots []string, limits Limits) (*Sanitized, error) {
	var fields []string

	goal := strings.TrimSpace(sub.Goal)
	if goal == "" {
		fields = append(fields, "goal: required and must be non-empty after trimming whitespace")
	} else if len(sub.Goal) > maxGoalBytes {
		fields = append(fields, "goal: exceeds maximum size of 4096 UTF-8 bytes")
	}

	workspaceRaw := strings.TrimSpace(sub.WorkspaceRoot)
	var canonicalWorkspace string
	if workspaceRaw == "" {
		fields = append(fields, "workspace_root: required")
	} else {
		resolved, err := pathguard.ResolveExisting(workspaceRaw)
		if err != nil {
			fields = append(fields, "workspace_root: could not be resolved: "+err.Error())
		} else {
			underRoot := false
			for _, root := range allowedRoots {
				canonicalRoot, err := pathguard.ResolveExisting(root)
				if err != nil {
					continue
				}
				if resolved == canonicalRoot || strings.HasPrefix(resolved, canonicalRoot+string(filepath.Separator)) {
					underRoot = true
					break
				}
			}
			if !underRoot {
				fields = append(fields, "workspace_root: not under any allowed root")
			}
			canonicalWorkspace = resolved
		}
	}

	var allowedTools []string
	for _, t := range sub.AllowedTools {
		if t != "" {
			allowedTools = append(allowedTools, t)
		}
	}

	turnsCap := limits.TurnsCap
	if turnsCap <= 0 {
		turnsCap = 50
	}
	turnsMax := defaultTurnsMax
	if sub.TurnsMax != nil && *sub.TurnsMax != 0 {
		turnsMax = clamp(*sub.TurnsMax, 1, turnsCap)
	} else {
		turnsMax = clamp(turnsMax, 1, turnsCap)
	}

	timeoutCap := limits.TimeoutCap
	if timeoutCap <= 0 {
		timeoutCap = 1800
	}
	timeoutSeconds := defaultTimeoutSecs
	if sub.TimeoutSeconds != nil {
		timeoutSeconds = *sub.TimeoutSeconds
	}
	timeoutSeconds = clamp(timeoutSeconds, 1, timeoutCap)

	if len(fields) > 0 {
		return nil, errs.New(errs.KindInvalidInput, "task submission failed validation").WithFields(fields)
	}

	return &Sanitized{
		Goal:           goal,
		WorkspaceRoot:  canonicalWorkspace,
		AllowedTools:   allowedTools,
		TurnsMax:       turnsMax,
		TimeoutSeconds: timeoutSeconds,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
