// Package catalog persists a local record of completed backup runs so the
// history of what was mirrored is queryable without talking to the remote.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/repobackup/internal/mirror"
)

// Run is one recorded backup run.
type Run struct {
	RunID      string
	Repository string
	Label      string
	Commit     string
	Skipped    bool
	Files      int
	Folders    int
	Bytes      int64
	Duration   time.Duration
	CreatedAt  time.Time
}

// Store records backup runs in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and initializes) the catalog database.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		repository TEXT NOT NULL,
		label TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		skipped INTEGER NOT NULL DEFAULT 0,
		files INTEGER NOT NULL,
		folders INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_repository ON runs(repository);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores the outcome of a backup run.
func (s *Store) Record(ctx context.Context, res *mirror.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	skipped := 0
	if res.Skipped {
		skipped = 1
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, repository, label, commit_sha, skipped, files, folders, bytes, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		res.RunID, res.Repository, res.Label, res.Commit, skipped,
		res.FilesUploaded, res.FoldersCreated, res.Bytes,
		res.Duration.Milliseconds(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. An empty repository
// matches all repositories.
func (s *Store) List(ctx context.Context, repository string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	query := "SELECT run_id, repository, label, commit_sha, skipped, files, folders, bytes, duration_ms, created_at FROM runs"
	args := []any{}
	if repository != "" {
		query += " WHERE repository = ?"
		args = append(args, repository)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var skipped int
		var durationMS, createdUnix int64
		if err := rows.Scan(&r.RunID, &r.Repository, &r.Label, &r.Commit, &skipped,
			&r.Files, &r.Folders, &r.Bytes, &durationMS, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Skipped = skipped != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = time.Unix(createdUnix, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
