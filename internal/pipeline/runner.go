// Package pipeline holds the merge routines and the Runner that executes a
// selection of them against a blob store.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"targetprep/internal/blob"
	"targetprep/internal/journal"
	"targetprep/internal/source"
	"targetprep/internal/table"
)

// ContentTypeCSV is stamped on every written output.
const ContentTypeCSV = "text/csv"

// DefaultTissueSource is the constant source column of tissue expression rows.
const DefaultTissueSource = "GTExv6"

// Loader resolves a dataset location into a table.
type Loader interface {
	Load(ctx context.Context, dataset, location string) (*table.Table, error)
}

// Runner executes routines sequentially. Inputs are loaded once per run and
// shared between routines; outputs are committed all-or-nothing per routine.
type Runner struct {
	store    blob.Store
	loader   Loader
	datasets map[string]string
	env      Env
	logger   Logger
	metrics  MetricsRecorder
	journal  journal.Store
	clock    Clock
	newID    func() string
}

// RoutineResult summarises one routine execution.
type RoutineResult struct {
	Routine     string
	Status      journal.Status
	Outputs     []string
	RowsWritten int
	Degraded    int
	Duration    time.Duration
	Err         error
}

// Report summarises a run.
type Report struct {
	RunID    string
	Routines []RoutineResult
}

// NewRunner builds a Runner writing to store. datasets maps dataset keys to
// locations; loader reads inputs.
func NewRunner(store blob.Store, loader Loader, datasets map[string]string, opts ...Option) *Runner {
	r := &Runner{
		store:    store,
		loader:   loader,
		datasets: datasets,
		env:      Env{TissueSource: DefaultTissueSource},
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		clock:    systemClock{},
		newID:    newRunID,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.env.Logger = r.logger
	return r
}

// Plan resolves names into routines in declaration order and checks that
// every dataset they touch has a location. Duplicates are ignored.
func (r *Runner) Plan(names []string) ([]Routine, error) {
	if len(names) == 0 {
		return nil, errors.New("no routines selected")
	}
	selected := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, err := Lookup(n); err != nil {
			return nil, err
		}
		selected[n] = struct{}{}
	}
	var plan []Routine
	for _, rt := range Routines() {
		if _, ok := selected[rt.Name]; !ok {
			continue
		}
		for _, key := range append(append([]string(nil), rt.Inputs...), rt.Outputs...) {
			if r.datasets[key] == "" {
				return nil, ErrDatasetNotConfigured{Routine: rt.Name, Dataset: key}
			}
		}
		for _, key := range rt.Outputs {
			if source.IsURL(r.datasets[key]) {
				return nil, fmt.Errorf("routine %s: output %s must be a blob key, got URL %s", rt.Name, key, r.datasets[key])
			}
		}
		plan = append(plan, rt)
	}
	return plan, nil
}

// Run executes the named routines and stops at the first failure. The report
// lists every routine that was attempted.
func (r *Runner) Run(ctx context.Context, names []string) (Report, error) {
	plan, err := r.Plan(names)
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: r.newID()}
	r.logger.Info("run started", "run_id", report.RunID, "routines", routineNames(plan))
	cache := make(map[string]*table.Table)
	for _, rt := range plan {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := r.execute(ctx, report.RunID, rt, cache)
		report.Routines = append(report.Routines, res)
		if res.Err != nil {
			return report, fmt.Errorf("routine %s: %w", rt.Name, res.Err)
		}
	}
	r.logger.Info("run finished", "run_id", report.RunID, "routines", len(report.Routines))
	return report, nil
}

func (r *Runner) execute(ctx context.Context, runID string, rt Routine, cache map[string]*table.Table) RoutineResult {
	started := r.clock.Now()
	res := RoutineResult{Routine: rt.Name, Status: journal.StatusSucceeded}
	r.logger.Info("routine started", "run_id", runID, "routine", rt.Name)

	res.Err = func() error {
		inputs, err := r.load(ctx, rt, cache)
		if err != nil {
			return err
		}
		out, err := rt.Transform(inputs, r.env)
		if err != nil {
			return err
		}
		res.Degraded = r.reportDegraded(rt.Name, out.Degraded)
		written, rows, err := r.commit(ctx, rt, out.Tables)
		if err != nil {
			return err
		}
		res.Outputs, res.RowsWritten = written, rows
		return nil
	}()

	finished := r.clock.Now()
	res.Duration = finished.Sub(started)
	r.metrics.Observe(ctx, rt.Name, res.Err == nil, res.Duration)
	entry := journal.Entry{
		RunID:       runID,
		Routine:     rt.Name,
		Status:      journal.StatusSucceeded,
		Outputs:     res.Outputs,
		RowsWritten: res.RowsWritten,
		Degraded:    res.Degraded,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if res.Err != nil {
		res.Status = journal.StatusFailed
		entry.Status = journal.StatusFailed
		entry.Error = res.Err.Error()
		r.logger.Error("routine failed", "run_id", runID, "routine", rt.Name, "error", res.Err)
	} else {
		r.logger.Info("routine finished", "run_id", runID, "routine", rt.Name,
			"outputs", res.Outputs, "rows", res.RowsWritten, "duration", res.Duration)
	}
	if r.journal != nil {
		if err := r.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
			r.logger.Warn("journal append failed", "run_id", runID, "routine", rt.Name, "error", err)
		}
	}
	return res
}

func (r *Runner) load(ctx context.Context, rt Routine, cache map[string]*table.Table) (map[string]*table.Table, error) {
	inputs := make(map[string]*table.Table, len(rt.Inputs))
	for _, key := range rt.Inputs {
		if t, ok := cache[key]; ok {
			inputs[key] = t
			continue
		}
		t, err := r.loader.Load(ctx, key, r.datasets[key])
		if err != nil {
			return nil, err
		}
		r.metrics.RowsRead(key, t.Len())
		r.logger.Debug("dataset loaded", "dataset", key, "location", r.datasets[key], "rows", t.Len(), "columns", len(t.Columns))
		cache[key] = t
		inputs[key] = t
	}
	return inputs, nil
}

func (r *Runner) reportDegraded(routine string, degraded map[string]int) int {
	cols := make([]string, 0, len(degraded))
	for c := range degraded {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	total := 0
	for _, c := range cols {
		n := degraded[c]
		if n == 0 {
			continue
		}
		total += n
		r.metrics.Degraded(routine, c, n)
		r.logger.Warn("values kept unsplit", "routine", routine, "column", c, "count", n)
	}
	return total
}

// commit writes every output of rt. On the first failure the outputs already
// written by this call are deleted again.
func (r *Runner) commit(ctx context.Context, rt Routine, tables map[string]*table.Table) ([]string, int, error) {
	rendered := make([][]byte, len(rt.Outputs))
	for i, key := range rt.Outputs {
		t, ok := tables[key]
		if !ok {
			return nil, 0, fmt.Errorf("routine %s produced no table for %s", rt.Name, key)
		}
		var buf bytes.Buffer
		if err := t.WriteCSV(&buf); err != nil {
			return nil, 0, fmt.Errorf("render %s: %w", key, err)
		}
		rendered[i] = buf.Bytes()
	}

	var written []string
	for i, key := range rt.Outputs {
		loc := r.datasets[key]
		_, err := r.store.Put(ctx, loc, bytes.NewReader(rendered[i]), blob.PutOptions{
			ContentType: ContentTypeCSV,
			Overwrite:   true,
			Metadata:    map[string]string{"routine": rt.Name, "dataset": key},
		})
		if err != nil {
			r.rollback(ctx, rt.Name, written)
			return nil, 0, fmt.Errorf("write %s to %s: %w", key, loc, err)
		}
		written = append(written, loc)
	}

	rows := 0
	for _, key := range rt.Outputs {
		n := tables[key].Len()
		rows += n
		r.metrics.RowsWritten(key, n)
	}
	return written, rows, nil
}

func (r *Runner) rollback(ctx context.Context, routine string, written []string) {
	ctx = context.WithoutCancel(ctx)
	for _, loc := range written {
		if _, err := r.store.Delete(ctx, loc); err != nil {
			r.logger.Error("rollback delete failed", "routine", routine, "location", loc, "error", err)
			continue
		}
		r.logger.Warn("output rolled back", "routine", routine, "location", loc)
	}
}

func routineNames(rs []Routine) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}
