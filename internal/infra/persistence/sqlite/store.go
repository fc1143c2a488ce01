// Package sqlite persists the run journal in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"targetprep/internal/journal/core"
)

const schema = `CREATE TABLE IF NOT EXISTS targetprep_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	routine TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	outputs TEXT NOT NULL,
	rows_written INTEGER NOT NULL,
	degraded INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
)`

// Store appends journal entries to a single SQLite table.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the journal database at path.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "targetprep.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// Append inserts e.
func (s *Store) Append(ctx context.Context, e core.Entry) error {
	outputs, err := json.Marshal(nonNil(e.Outputs))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO targetprep_runs(run_id, routine, status, error, outputs, rows_written, degraded, started_at, finished_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		e.RunID, e.Routine, string(e.Status), e.Error, string(outputs), e.RowsWritten, e.Degraded,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.Entry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, routine, status, error, outputs, rows_written, degraded, started_at, finished_at FROM targetprep_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select journal: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Entry
	for rows.Next() {
		var (
			e                 core.Entry
			status, outputs   string
			started, finished string
		)
		if err := rows.Scan(&e.RunID, &e.Routine, &status, &e.Error, &outputs, &e.RowsWritten, &e.Degraded, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.Status = core.Status(status)
		if err := json.Unmarshal([]byte(outputs), &e.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs: %w", err)
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("decode started_at: %w", err)
		}
		if e.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("decode finished_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
