package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/workspace/agent-gateway/internal/errs"
)

func intPtr(v int) *int { return &v }

func TestValidateRejectsEmptyGoal(t *testing.T) {
	dir := t.TempDir()
	sub := Submission{Goal: "   ", WorkspaceRoot: dir}
	_, err := Validate(sub, []string{dir}, Limits{})
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestValidateRejectsOversizedGoal(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, maxGoalBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	sub := Submission{Goal: string(big), WorkspaceRoot: dir}
	_, err := Validate(sub, []string{dir}, Limits{})
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestValidateRejectsWorkspaceOutsideAllowedRoots(t *testing.T) {
	dir := t.TempDir()
	allowed := filepath.Join(dir, "allowed")
	outside := filepath.Join(dir, "outside")
	if err := os.MkdirAll(allowed, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}

	sub := Submission{Goal: "do the thing", WorkspaceRoot: outside}
	_, err := Validate(sub, []string{allowed}, Limits{})
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestValidateAcceptsAndCanonicalizesWorkspace(t *testing.T) {
	dir := t.TempDir()
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "ws")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	sub := Submission{Goal: "do the thing", WorkspaceRoot: nested}
	sanitized, err := Validate(sub, []string{root}, Limits{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sanitized.WorkspaceRoot != nested {
		t.Errorf("WorkspaceRoot = %q, want %q", sanitized.WorkspaceRoot, nested)
	}
	if sanitized.TurnsMax != defaultTurnsMax {
		t.Errorf("TurnsMax = %d, want default %d", sanitized.TurnsMax, defaultTurnsMax)
	}
	if sanitized.TimeoutSeconds != defaultTimeoutSecs {
		t.Errorf("TimeoutSeconds = %d, want default %d", sanitized.TimeoutSeconds, defaultTimeoutSecs)
	}
}

func TestValidateDropsNonStringAllowedTools(t *testing.T) {
	dir := t.TempDir()
	sub := Submission{
		Goal:          "do the thing",
		WorkspaceRoot: dir,
		AllowedTools:  []string{"Read", "", "Write"},
	}
	sanitized, err := Validate(sub, []string{dir}, Limits{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(sanitized.AllowedTools) != 2 {
		t.Errorf("AllowedTools = %v, want 2 entries", sanitized.AllowedTools)
	}
}

func TestValidateClampsTurnsMaxToCap(t *testing.T) {
	dir := t.TempDir()
	sub := Submission{
		Goal:          "do the thing",
		WorkspaceRoot: dir,
		TurnsMax:      intPtr(1000),
	}
	sanitized, err := Validate(sub, []string{dir}, Limits{TurnsCap: 50})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sanitized.TurnsMax != 50 {
		t.Errorf("TurnsMax = %d, want clamped to 50", sanitized.TurnsMax)
	}
}

func TestValidateClampsTurnsMaxBelowMinimum(t *testing.T) {
	dir := t.TempDir()
	sub := Submission{
		Goal:          "do the thing",
		WorkspaceRoot: dir,
		TurnsMax:      intPtr(-5),
	}
	sanitized, err := Validate(sub, []string{dir}, Limits{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sanitized.TurnsMax != 1 {
		t.Errorf("TurnsMax = %d, want clamped to 1", sanitized.TurnsMax)
	}
}

func TestValidateClampsTimeoutSecondsToCap(t *testing.T) {
	dir := t.TempDir()
	sub := Submission{
		Goal:           "do the thing",
		WorkspaceRoot:  dir,
		TimeoutSeconds: intPtr(100000),
	}
	sanitized, err := Validate(sub, []string{dir}, Limits{TimeoutCap: 1800})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sanitized.TimeoutSeconds != 1800 {
		t.Errorf("TimeoutSeconds = %d, want clamped to 1800", sanitized.TimeoutSeconds)
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	sub := Submission{Goal: "", WorkspaceRoot: ""}
	_, err := Validate(sub, nil, Limits{})
	e, ok := errs.As(err)
	if !ok {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
	if len(e.Fields) < 2 {
		t.Errorf("expected at least 2 field errors, got %v", e.Fields)
	}
}
