package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"targetprep/internal/journal"
)

// Logger is the structured logger the runner reports through. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives routine outcomes and row counts.
type MetricsRecorder interface {
	Observe(ctx context.Context, routine string, success bool, duration time.Duration)
	RowsRead(dataset string, n int)
	RowsWritten(dataset string, n int)
	Degraded(routine, column string, n int)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) RowsRead(string, int)                                 {}
func (noopMetrics) RowsWritten(string, int)                              {}
func (noopMetrics) Degraded(string, string, int)                         {}

// Clock supplies timestamps for journal entries and durations.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger. nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithJournal records one entry per routine execution in j.
func WithJournal(j journal.Store) Option {
	return func(r *Runner) { r.journal = j }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithTissueSource sets the constant written to the source column of the
// tissue expression output.
func WithTissueSource(source string) Option {
	return func(r *Runner) {
		if source != "" {
			r.env.TissueSource = source
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func newRunID() string { return uuid.NewString() }
