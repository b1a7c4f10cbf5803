package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/workspace/agent-gateway/internal/blockers"
	"github.com/workspace/agent-gateway/internal/errs"
	"github.com/workspace/agent-gateway/internal/policy"
	"github.com/workspace/agent-gateway/internal/promptbuilder"
	"github.com/workspace/agent-gateway/internal/store"
	"github.com/workspace/agent-gateway/internal/supervisor"
)

// handleCreateTask validates and accepts a new task submission, acquiring
// the gate and spawning the background supervisor run. It never blocks on
// the run itself: the response is sent as soon as the session directory
// exists and the gate is held.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var sub policy.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	sanitized, err := policy.Validate(sub, s.cfg.AllowedRoots, policy.Limits{
		TurnsCap:   s.cfg.TurnsCap,
		TimeoutCap: s.cfg.TimeoutCapSecs,
	})
	if err != nil {
		writeTypedError(w, err, nil, 0)
		return
	}

	prompt, err := promptbuilder.Build(sanitized.Goal, sanitized.WorkspaceRoot, s.cfg.PromptAppend, nil)
	if err != nil {
		writeTypedError(w, err, nil, 0)
		return
	}

	id := newSessionID()
	if !s.gate.Acquire(sanitized.WorkspaceRoot, id) {
		activeID, _ := s.gate.ActiveSessionID()
		writeTypedError(w, errs.New(errs.KindBusy, "a session is already running"), map[string]any{"active_session": activeID}, 0)
		return
	}

	task := store.Task{
		Goal:           sanitized.Goal,
		WorkspaceRoot:  sanitized.WorkspaceRoot,
		AllowedTools:   sanitized.AllowedTools,
		TurnsMax:       sanitized.TurnsMax,
		TimeoutSeconds: sanitized.TimeoutSeconds,
		TemplateDigest: promptbuilder.Digest,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Create(id, task); err != nil {
		s.gate.Release(sanitized.WorkspaceRoot, id)
		writeTypedError(w, err, nil, 0)
		return
	}
	s.indexUpsertFromTask(id, task, store.StatusRunning)

	s.runInBackground(id, sanitized, prompt, task)

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

// runInBackground launches the supervised subprocess run and, on its
// completion, persists the terminal state patch and releases the gate.
// The gate is released here — on the run actually finishing — never by
// the abort handler, so a new submission cannot start while the old
// child is still alive.
func (s *Server) runInBackground(id string, sanitized *policy.Sanitized, prompt string, task store.Task) {
	flag := &atomicBool{}
	s.cancelMu.Lock()
	s.cancelFlags[id] = flag
	s.cancelMu.Unlock()

	go func() {
		defer func() {
			s.gate.Release(sanitized.WorkspaceRoot, id)
			s.cancelMu.Lock()
			delete(s.cancelFlags, id)
			s.cancelMu.Unlock()
		}()

		result, err := supervisor.Run(context.Background(), supervisor.Input{
			SessionID:    id,
			Goal:         sanitized.Goal,
			Prompt:       prompt,
			Workspace:    sanitized.WorkspaceRoot,
			SessionDir:   s.store.SessionDir(id),
			AllowedTools: sanitized.AllowedTools,
			Timeout:      time.Duration(sanitized.TimeoutSeconds) * time.Second,
			GraceSecs:    time.Duration(s.cfg.ProcessGraceSecs) * time.Second,
			AgentBinary:  s.cfg.AgentBinary,
			Cancelled:    flag.get,
			OnProgress: func(turnsCompleted int, bl []blockers.Blocker) {
				storeBlockers := make([]store.Blocker, len(bl))
				for i, b := range bl {
					storeBlockers[i] = store.Blocker{Description: b.Description, File: b.File, LineRange: b.LineRange}
				}
				s.store.UpdateState(id, store.Patch{TurnsCompleted: &turnsCompleted, Blockers: storeBlockers})
			},
		})
		if err != nil {
			failed := store.StatusFailed
			summary := "internal error while supervising subprocess: " + err.Error()
			s.store.UpdateState(id, store.Patch{Status: &failed, ErrorSummary: &summary})
			s.indexUpsertFromState(id, task.Goal)
			return
		}

		// A zero Result.Status means Run observed the cancellation flag
		// after the child exited but before finalizing: the abort handler
		// already wrote the terminal "aborted" state, so there is nothing
		// further to persist.
		if result.Status == "" {
			s.indexUpsertFromState(id, task.Goal)
			return
		}

		status := result.Status
		s.store.UpdateState(id, store.Patch{
			Status:         &status,
			TurnsCompleted: &result.TurnsCompleted,
			Blockers:       result.Blockers,
			FilesChanged:   result.FilesChanged,
			Artifacts:      result.Artifacts,
			FallbackEvents: result.FallbackEvents,
			CostUSD:        result.CostUSD,
			ErrorSummary:   result.ErrorSummary,
		})
		s.indexUpsertFromState(id, task.Goal)
	}()
}

// indexUpsertFromTask records the just-created session in the secondary
// listing index. Failure is logged, not surfaced: the index is rebuildable
// from the store at any time.
func (s *Server) indexUpsertFromTask(id string, task store.Task, status store.Status) {
	if s.idx == nil {
		return
	}
	_ = s.idx.Upsert(store.Summary{
		ID:        id,
		Status:    status,
		Goal:      task.Goal,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.CreatedAt,
	})
}

// indexUpsertFromState re-reads the current state and refreshes the
// secondary index entry after a supervisor-driven mutation.
func (s *Server) indexUpsertFromState(id, goal string) {
	if s.idx == nil {
		return
	}
	state, err := s.store.GetState(id)
	if err != nil || state == nil {
		return
	}
	task, err := s.store.GetTask(id)
	createdAt := state.UpdatedAt
	if err == nil && task != nil {
		createdAt = task.CreatedAt
	}
	_ = s.idx.Upsert(store.Summary{
		ID:        id,
		Status:    state.Status,
		Goal:      goal,
		CreatedAt: createdAt,
		UpdatedAt: state.UpdatedAt,
	})
}
