// Package index maintains a SQLite-backed secondary index of session
// summaries so session listing does not require scanning the session
// store's directory tree on every request. The filesystem remains the
// system of record; this index is rebuilt from it at startup and is
// safe to delete at any time.
package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/workspace/agent-gateway/internal/store"
)

// Index is a rebuildable secondary index over session summaries.
type Index struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a SQLite database at dbPath and applies schema
// migrations.
func Open(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return idx, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) migrate() error {
	if _, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	if err := idx.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []func(*sql.DB) error{migrateV1}
	for i := version; i < len(migrations); i++ {
		slog.Info("applying session index migration", "version", i+1)
		if err := migrations[i](idx.db); err != nil {
			return fmt.Errorf("migration v%d: %w", i+1, err)
		}
		if _, err := idx.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("record migration v%d: %w", i+1, err)
		}
	}
	return nil
}

func migrateV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			goal TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	`)
	return err
}

// Upsert records or updates one session's summary.
func (idx *Index) Upsert(s store.Summary) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, err := idx.db.Exec(
		"INSERT INTO sessions (id, status, goal, created_at, updated_at) VALUES (?, ?, ?, ?, ?) "+
			"ON CONFLICT(id) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at",
		s.ID, string(s.Status), s.Goal, s.CreatedAt.Format(time.RFC3339Nano), s.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert session summary: %w", err)
	}
	return nil
}

// List returns every indexed session summary, ordered oldest-first.
func (idx *Index) List() ([]store.Summary, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query("SELECT id, status, goal, created_at, updated_at FROM sessions ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("list session summaries: %w", err)
	}
	defer rows.Close()

	var summaries []store.Summary
	for rows.Next() {
		var id, status, goal, createdAt, updatedAt string
		if err := rows.Scan(&id, &status, &goal, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		created, _ := time.Parse(time.RFC3339Nano, createdAt)
		updated, _ := time.Parse(time.RFC3339Nano, updatedAt)
		summaries = append(summaries, store.Summary{
			ID:        id,
			Status:    store.Status(status),
			Goal:      goal,
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	return summaries, nil
}

// Rebuild replaces the index contents wholesale with fresh summaries,
// typically sourced from Store.ListSessions at startup.
func (idx *Index) Rebuild(summaries []store.Summary) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear session index: %w", err)
	}
	for _, s := range summaries {
		if _, err := tx.Exec(
			"INSERT INTO sessions (id, status, goal, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			s.ID, string(s.Status), s.Goal, s.CreatedAt.Format(time.RFC3339Nano), s.UpdatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert session summary: %w", err)
		}
	}
	return tx.Commit()
}
