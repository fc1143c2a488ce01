// Package postgres persists the run journal to a Postgres table through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"targetprep/internal/journal/core"
)

var _ core.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/targetprep?sslmode=disable"
)

const createRuns = `CREATE TABLE IF NOT EXISTS targetprep_runs (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	routine TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	outputs JSONB NOT NULL,
	rows_written BIGINT NOT NULL,
	degraded BIGINT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store writes journal entries to the targetprep_runs table.
type Store struct {
	db *sql.DB
}

// NewStore connects to dsn (falls back to defaultDSN) and ensures the runs
// table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createRuns); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// Append inserts e.
func (s *Store) Append(ctx context.Context, e core.Entry) error {
	outputs := e.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	raw, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO targetprep_runs (run_id, routine, status, error, outputs, rows_written, degraded, started_at, finished_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.RunID, e.Routine, string(e.Status), e.Error, string(raw), int64(e.RowsWritten), int64(e.Degraded), e.StartedAt.UTC(), e.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.Entry, error) {
	query := `SELECT run_id, routine, status, error, outputs, rows_written, degraded, started_at, finished_at FROM targetprep_runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select journal: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Entry
	for rows.Next() {
		var (
			e       core.Entry
			status  string
			outputs []byte
		)
		if err := rows.Scan(&e.RunID, &e.Routine, &status, &e.Error, &outputs, &e.RowsWritten, &e.Degraded, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Status = core.Status(status)
		if err := json.Unmarshal(outputs, &e.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sql.Open implementation; intended for tests only.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
