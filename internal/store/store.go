package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/workspace/agent-gateway/internal/errs"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

const (
	taskFileName        = "task.json"
	stateFileName       = "shared_state.json"
	turnsDirName        = "turns"
	outDirName          = "out"
	artifactsSubdir     = ".agent-firewall/artifacts"
	startupAbortSummary = "Server restarted while session was running"
)

// Store is a filesystem-backed session store rooted at dataDir. It is the
// only component that performs directory-level mutations for session
// records; every other component reaches the filesystem through it.
type Store struct {
	dataDir string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open returns a Store rooted at dataDir, creating the directory if absent.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// perSessionLock returns the serialization mutex for id, creating it on
// first use. Different ids never contend with each other.
func (s *Store) perSessionLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.dataDir, id)
}

// Create validates id, rejects an existing session, and writes task.json
// plus an initial shared_state.json.
func (s *Store) Create(id string, task Task) error {
	if !sessionIDPattern.MatchString(id) {
		return errs.New(errs.KindInvalidInput, "session id does not match ^[A-Za-z0-9_-]{1,128}$")
	}

	lock := s.perSessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	dir := s.sessionDir(id)
	taskPath := filepath.Join(dir, taskFileName)
	if _, err := os.Stat(taskPath); err == nil {
		return errs.New(errs.KindStoreConflict, "session already exists: "+id)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	task.SessionID = id
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	if err := writeJSONAtomic(taskPath, task); err != nil {
		return fmt.Errorf("write task.json: %w", err)
	}

	now := task.CreatedAt
	state := SharedState{
		SessionID:      id,
		Goal:           task.Goal,
		Status:         StatusRunning,
		TurnsCompleted: 0,
		TurnsMax:       task.TurnsMax,
		Progress:       []string{},
		Blockers:       []Blocker{},
		FilesChanged:   []string{},
		Artifacts:      []Artifact{},
		FallbackEvents: []FallbackEvent{},
		UpdatedAt:      now,
	}
	if err := writeJSONAtomic(filepath.Join(dir, stateFileName), state); err != nil {
		return fmt.Errorf("write shared_state.json: %w", err)
	}

	return nil
}

// GetTask returns the immutable task record, or (nil, nil) if absent.
func (s *Store) GetTask(id string) (*Task, error) {
	var task Task
	ok, err := readJSON(filepath.Join(s.sessionDir(id), taskFileName), &task)
	if err != nil || !ok {
		return nil, err
	}
	return &task, nil
}

// GetState returns the live state record, or (nil, nil) if absent.
func (s *Store) GetState(id string) (*SharedState, error) {
	var state SharedState
	ok, err := readJSON(filepath.Join(s.sessionDir(id), stateFileName), &state)
	if err != nil || !ok {
		return nil, err
	}
	return &state, nil
}

// Patch is a set of SharedState fields to shallow-merge into the current
// state. A nil field is left unchanged.
type Patch struct {
	Status         *Status
	TurnsCompleted *int
	Progress       []string
	AppendProgress []string
	Blockers       []Blocker
	FilesChanged   []string
	Artifacts      []Artifact
	FallbackEvents []FallbackEvent
	CostUSD        *float64
	ErrorSummary   *string
}

// UpdateState reads the current state, shallow-merges patch (session_id and
// goal are never overwritten), bumps updated_at, and atomically rewrites
// shared_state.json. Serialized per session id.
func (s *Store) UpdateState(id string, patch Patch) (*SharedState, error) {
	lock := s.perSessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	statePath := filepath.Join(s.sessionDir(id), stateFileName)
	var state SharedState
	ok, err := readJSON(statePath, &state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.KindNotFound, "session not found: "+id)
	}

	if patch.Status != nil {
		state.Status = *patch.Status
	}
	if patch.TurnsCompleted != nil {
		state.TurnsCompleted = *patch.TurnsCompleted
	}
	if patch.Progress != nil {
		state.Progress = patch.Progress
	}
	if len(patch.AppendProgress) > 0 {
		state.Progress = append(state.Progress, patch.AppendProgress...)
	}
	if patch.Blockers != nil {
		state.Blockers = patch.Blockers
	}
	if patch.FilesChanged != nil {
		state.FilesChanged = patch.FilesChanged
	}
	if patch.Artifacts != nil {
		state.Artifacts = patch.Artifacts
	}
	if patch.FallbackEvents != nil {
		state.FallbackEvents = patch.FallbackEvents
	}
	if patch.CostUSD != nil {
		state.CostUSD = patch.CostUSD
	}
	if patch.ErrorSummary != nil {
		state.ErrorSummary = patch.ErrorSummary
	}
	state.UpdatedAt = time.Now().UTC()

	if err := writeJSONAtomic(statePath, state); err != nil {
		return nil, fmt.Errorf("write shared_state.json: %w", err)
	}
	return &state, nil
}

// ListSessions returns summaries for every valid-id directory containing
// both task.json and shared_state.json. Malformed entries are skipped.
func (s *Store) ListSessions() ([]Summary, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !sessionIDPattern.MatchString(entry.Name()) {
			continue
		}
		id := entry.Name()

		var task Task
		okTask, err := readJSON(filepath.Join(s.sessionDir(id), taskFileName), &task)
		if err != nil || !okTask {
			continue
		}
		var state SharedState
		okState, err := readJSON(filepath.Join(s.sessionDir(id), stateFileName), &state)
		if err != nil || !okState {
			continue
		}

		summaries = append(summaries, Summary{
			ID:        id,
			Status:    state.Status,
			Goal:      task.Goal,
			CreatedAt: task.CreatedAt,
			UpdatedAt: state.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// MarkAbortedOnStartup transitions every session still "running" on disk
// to "aborted", closing the window a crash-and-restart would otherwise
// leave open.
func (s *Store) MarkAbortedOnStartup() error {
	summaries, err := s.ListSessions()
	if err != nil {
		return err
	}

	summary := startupAbortSummary
	aborted := StatusAborted
	for _, sm := range summaries {
		if sm.Status != StatusRunning {
			continue
		}
		if _, err := s.UpdateState(sm.ID, Patch{Status: &aborted, ErrorSummary: &summary}); err != nil {
			slog.Error("failed to mark session aborted on startup", "session_id", sm.ID, "error", err)
		}
	}
	return nil
}

// GetArtifactPath resolves name against the session's artifacts directory,
// returning the canonical path iff it names a regular file there. workspace
// overrides the default <data>/.agent-firewall/artifacts location when a
// session-specific workspace root is known.
func (s *Store) GetArtifactPath(id, name, workspace string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", nil
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", nil
	}

	var artifactsDir string
	if workspace != "" {
		artifactsDir = filepath.Join(workspace, artifactsSubdir)
	} else {
		task, err := s.GetTask(id)
		if err != nil {
			return "", err
		}
		if task == nil {
			return "", nil
		}
		artifactsDir = filepath.Join(task.WorkspaceRoot, artifactsSubdir)
	}

	candidate := filepath.Join(artifactsDir, name)
	info, err := os.Lstat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil
	}
	return candidate, nil
}

// SessionDir exposes the per-session directory for components (Supervisor,
// HTTP logtail handler) that need direct access to turns/ and out/.
func (s *Store) SessionDir(id string) string {
	return s.sessionDir(id)
}

// ArtifactsDir returns the default artifacts directory for a workspace.
func ArtifactsDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, artifactsSubdir)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// readJSON unmarshals path into v. Returns (false, nil) if the file does
// not exist; other I/O or decode errors surface.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
