package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"targetprep/internal/journal/core"
)

func TestStoreAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.Driver() != core.DriverSQLite || s.Path() != path {
		t.Fatalf("unexpected driver/path %s %s", s.Driver(), s.Path())
	}

	start := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
	first := core.Entry{RunID: "r1", Routine: "pharmaprojects", Status: core.StatusSucceeded,
		Outputs: []string{"output/pharmaprojects.csv"}, RowsWritten: 3, StartedAt: start, FinishedAt: start.Add(time.Second)}
	second := core.Entry{RunID: "r2", Routine: "gene_annotations", Status: core.StatusFailed,
		Error: "missing column", Degraded: 1, StartedAt: start.Add(time.Minute), FinishedAt: start.Add(2 * time.Minute)}
	for _, e := range []core.Entry{first, second} {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 2 || all[0].RunID != "r2" || all[1].RunID != "r1" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if !reflect.DeepEqual(all[1].Outputs, first.Outputs) || !all[1].StartedAt.Equal(first.StartedAt) {
		t.Fatalf("entry did not round trip: %+v", all[1])
	}
	if len(all[0].Outputs) != 0 || all[0].Error != "missing column" || all[0].Status != core.StatusFailed {
		t.Fatalf("failed entry did not round trip: %+v", all[0])
	}

	one, err := s.Recent(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("limit not applied: %v %d", err, len(one))
	}
}

func TestStoreReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := time.Now().UTC()
	if err := s.Append(ctx, core.Entry{RunID: "r", Routine: "disease_location", Status: core.StatusSucceeded, StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Close()

	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Recent(ctx, 10)
	if err != nil || len(got) != 1 || got[0].Routine != "disease_location" {
		t.Fatalf("expected persisted entry, got %v %+v", err, got)
	}
}
