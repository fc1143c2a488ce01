// Package core defines the run journal contract shared by the persistence drivers.
package core

import (
	"context"
	"time"
)

// Driver identifies a journal persistence backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Status is the outcome of one routine execution.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry records one routine execution within a run.
type Entry struct {
	RunID       string    `json:"run_id"`
	Routine     string    `json:"routine"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Outputs     []string  `json:"outputs,omitempty"`
	RowsWritten int       `json:"rows_written"`
	Degraded    int       `json:"degraded"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Store appends and lists journal entries.
type Store interface {
	// Append records an entry.
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, most recently appended first.
	// A limit <= 0 returns every entry.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
	Driver() Driver
}
