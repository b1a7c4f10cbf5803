// Package store implements the filesystem-backed session store: the
// system of record for task definitions and live session state, plus the
// per-turn audit trail and output artifacts that accompany a run.
package store

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
)

// Task is the immutable record written once at session creation.
type Task struct {
	SessionID      string    `json:"session_id"`
	Goal           string    `json:"goal"`
	WorkspaceRoot  string    `json:"workspace_root"`
	AllowedTools   []string  `json:"allowed_tools"`
	TurnsMax       int       `json:"turns_max"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	CreatedAt      time.Time `json:"created_at"`
	TemplateDigest string    `json:"template_digest"`
}

// Blocker is a single extracted file:line reference with its containing
// line as description.
type Blocker struct {
	Description string `json:"description"`
	File        string `json:"file"`
	LineRange   string `json:"line_range"`
}

// Artifact describes a single file produced under the artifacts directory.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// FallbackEvent records one CLI-flag-rejection fallback taken by the
// supervisor.
type FallbackEvent struct {
	Time            time.Time `json:"time"`
	AttemptedFlag   string    `json:"attempted_flag"`
	Reason          string    `json:"reason"`
	FallbackAction  string    `json:"fallback_action"`
}

// SharedState is the live, mutable status record for a session.
type SharedState struct {
	SessionID       string          `json:"session_id"`
	Goal            string          `json:"goal"`
	Status          Status          `json:"status"`
	TurnsCompleted  int             `json:"turns_completed"`
	TurnsMax        int             `json:"turns_max"`
	Progress        []string        `json:"progress"`
	Blockers        []Blocker       `json:"blockers"`
	FilesChanged    []string        `json:"files_changed"`
	Artifacts       []Artifact      `json:"artifacts"`
	FallbackEvents  []FallbackEvent `json:"fallback_events"`
	CostUSD         *float64        `json:"cost_usd"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ErrorSummary    *string         `json:"error_summary"`

	// extra preserves unknown fields encountered on read so a
	// shallow-merge update does not silently discard forward-compatible
	// data written by a newer process.
	extra map[string]any `json:"-"`
}

// Summary is the listing projection returned by ListSessions.
type Summary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Goal      string    `json:"goal"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
