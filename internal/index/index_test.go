package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/workspace/agent-gateway/internal/store"
)

func tempIndexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "index.db")
}

func TestOpenAndClose(t *testing.T) {
	idx, err := Open(tempIndexPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestUpsertAndList(t *testing.T) {
	idx, err := Open(tempIndexPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	now := time.Now().UTC()
	if err := idx.Upsert(store.Summary{ID: "s1", Status: store.StatusRunning, Goal: "g1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	summaries, err := idx.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "s1" {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	idx, err := Open(tempIndexPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	now := time.Now().UTC()
	idx.Upsert(store.Summary{ID: "s1", Status: store.StatusRunning, Goal: "g1", CreatedAt: now, UpdatedAt: now})
	later := now.Add(time.Minute)
	if err := idx.Upsert(store.Summary{ID: "s1", Status: store.StatusDone, Goal: "g1", CreatedAt: now, UpdatedAt: later}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	summaries, err := idx.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Status != store.StatusDone {
		t.Fatalf("summaries = %+v, want single updated row", summaries)
	}
}

func TestRebuildReplacesContents(t *testing.T) {
	idx, err := Open(tempIndexPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	now := time.Now().UTC()
	idx.Upsert(store.Summary{ID: "stale", Status: store.StatusRunning, Goal: "g", CreatedAt: now, UpdatedAt: now})

	fresh := []store.Summary{
		{ID: "s1", Status: store.StatusDone, Goal: "g1", CreatedAt: now, UpdatedAt: now},
		{ID: "s2", Status: store.StatusFailed, Goal: "g2", CreatedAt: now.Add(time.Second), UpdatedAt: now},
	}
	if err := idx.Rebuild(fresh); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	summaries, err := idx.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %+v, want 2 entries replacing the stale one", summaries)
	}
	for _, s := range summaries {
		if s.ID == "stale" {
			t.Error("stale entry survived Rebuild")
		}
	}
}
