package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/workspace/agent-gateway/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestCreateRejectsInvalidID(t *testing.T) {
	s := newTestStore(t)
	err := s.Create("bad id with spaces", Task{Goal: "g", WorkspaceRoot: "/ws"})
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestCreateWritesTaskAndInitialState(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("session-1", Task{Goal: "fix it", WorkspaceRoot: "/ws", TurnsMax: 20}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	task, err := s.GetTask("session-1")
	if err != nil || task == nil {
		t.Fatalf("GetTask: %v, %v", task, err)
	}
	if task.Goal != "fix it" || task.SessionID != "session-1" {
		t.Errorf("unexpected task: %+v", task)
	}

	state, err := s.GetState("session-1")
	if err != nil || state == nil {
		t.Fatalf("GetState: %v, %v", state, err)
	}
	if state.Status != StatusRunning {
		t.Errorf("status = %q, want running", state.Status)
	}
	if state.TurnsCompleted != 0 {
		t.Errorf("turns_completed = %d, want 0", state.TurnsCompleted)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("session-1", Task{Goal: "g", WorkspaceRoot: "/ws"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create("session-1", Task{Goal: "g2", WorkspaceRoot: "/ws"})
	if errs.KindOf(err) != errs.KindStoreConflict {
		t.Fatalf("expected StoreConflict, got %v", err)
	}
}

func TestGetStateReturnsNilForAbsentSession(t *testing.T) {
	s := newTestStore(t)
	state, err := s.GetState("does-not-exist")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state, got %+v", state)
	}
}

func TestUpdateStateRejectsNonexistentSession(t *testing.T) {
	s := newTestStore(t)
	status := StatusDone
	_, err := s.UpdateState("missing", Patch{Status: &status})
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestUpdateStateShallowMergesAndBumpsTimestamp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("session-1", Task{Goal: "g", WorkspaceRoot: "/ws"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := s.GetState("session-1")

	turns := 3
	updated, err := s.UpdateState("session-1", Patch{TurnsCompleted: &turns, AppendProgress: []string{"step one"}})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if updated.TurnsCompleted != 3 {
		t.Errorf("turns_completed = %d, want 3", updated.TurnsCompleted)
	}
	if len(updated.Progress) != 1 || updated.Progress[0] != "step one" {
		t.Errorf("progress = %v, want [step one]", updated.Progress)
	}
	if updated.Goal != "g" {
		t.Errorf("goal mutated: %q", updated.Goal)
	}
	if updated.UpdatedAt.Before(before.UpdatedAt) {
		t.Error("updated_at moved backward")
	}
}

func TestListSessionsSkipsMalformedEntries(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("session-1", Task{Goal: "g", WorkspaceRoot: "/ws"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	summaries, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "session-1" {
		t.Errorf("summaries = %+v, want 1 entry for session-1", summaries)
	}
}

func TestMarkAbortedOnStartupTransitionsRunningSessions(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("session-1", Task{Goal: "g", WorkspaceRoot: "/ws"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.MarkAbortedOnStartup(); err != nil {
		t.Fatalf("MarkAbortedOnStartup: %v", err)
	}

	state, _ := s.GetState("session-1")
	if state.Status != StatusAborted {
		t.Errorf("status = %q, want aborted", state.Status)
	}
	if state.ErrorSummary == nil || *state.ErrorSummary != startupAbortSummary {
		t.Errorf("error_summary = %v, want startup recovery summary", state.ErrorSummary)
	}
}

func TestGetArtifactPathRejectsPathSeparatorsAndDotSegments(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	for _, name := range []string{"../escape", "a/b", "a\\b", ""} {
		path, err := s.GetArtifactPath("session-1", name, dir)
		if err != nil {
			t.Fatalf("GetArtifactPath(%q): %v", name, err)
		}
		if path != "" {
			t.Errorf("GetArtifactPath(%q) = %q, want empty", name, path)
		}
	}
}

func TestGetArtifactPathResolvesRegularFile(t *testing.T) {
	s := newTestStore(t)
	workspace := t.TempDir()
	artifactsDir := ArtifactsDir(workspace)
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(artifactsDir, "report.txt")
	if err := os.WriteFile(target, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := s.GetArtifactPath("session-1", "report.txt", workspace)
	if err != nil {
		t.Fatalf("GetArtifactPath: %v", err)
	}
	if path != target {
		t.Errorf("path = %q, want %q", path, target)
	}
}

func TestGetArtifactPathRejectsMissingFile(t *testing.T) {
	s := newTestStore(t)
	workspace := t.TempDir()
	path, err := s.GetArtifactPath("session-1", "missing.txt", workspace)
	if err != nil {
		t.Fatalf("GetArtifactPath: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for missing file", path)
	}
}
