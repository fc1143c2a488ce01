// Package journal records one entry per routine execution so operators can
// see which outputs a run produced and why a run stopped.
package journal

import (
	"context"
	"fmt"

	"targetprep/internal/infra/persistence/memory"
	"targetprep/internal/infra/persistence/postgres"
	"targetprep/internal/infra/persistence/sqlite"
	"targetprep/internal/journal/core"
)

type (
	// Driver identifies a journal backend.
	Driver = core.Driver
	// Status is a routine outcome.
	Status = core.Status
	// Entry is one journal record.
	Entry = core.Entry
	// Store is the journal persistence interface.
	Store = core.Store
)

const (
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres

	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
)

// Options selects and configures the journal backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the Store described by opts. An empty driver means sqlite.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(ctx, opts.SQLitePath)
	case DriverPostgres:
		return postgres.NewStore(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %s", driver)
	}
}
