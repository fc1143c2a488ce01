// Package observability publishes run metrics through a dedicated Prometheus
// registry. The recorder is process-local: metrics are written to a textfile
// after the run for node_exporter style collection.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "targetprep"

// Status labels used for routine outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PrometheusRecorder aggregates routine outcomes, row counts and degraded
// values. It satisfies pipeline.MetricsRecorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	read     *prometheus.CounterVec
	written  *prometheus.CounterVec
	degraded *prometheus.CounterVec
}

// NewPrometheusRecorder registers the targetprep collectors on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routine_runs_total",
			Help:      "Routine executions by outcome.",
		}, []string{"routine", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routine_duration_seconds",
			Help:      "Wall time per routine execution.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"routine"}),
		read: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows parsed per input dataset.",
		}, []string{"dataset"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written per output dataset.",
		}, []string{"dataset"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_values_total",
			Help:      "Derived values that fell back to the unsplit input.",
		}, []string{"routine", "column"}),
	}
	r.registry.MustRegister(r.runs, r.duration, r.read, r.written, r.degraded)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe records a routine outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, routine string, success bool, d time.Duration) {
	if routine == "" {
		return
	}
	status := StatusError
	if success {
		status = StatusSuccess
	}
	r.runs.WithLabelValues(routine, status).Inc()
	r.duration.WithLabelValues(routine).Observe(d.Seconds())
}

// RowsRead adds n parsed rows for dataset.
func (r *PrometheusRecorder) RowsRead(dataset string, n int) {
	r.read.WithLabelValues(dataset).Add(float64(n))
}

// RowsWritten adds n written rows for dataset.
func (r *PrometheusRecorder) RowsWritten(dataset string, n int) {
	r.written.WithLabelValues(dataset).Add(float64(n))
}

// Degraded adds n fallback values for routine and column.
func (r *PrometheusRecorder) Degraded(routine, column string, n int) {
	if n <= 0 {
		return
	}
	r.degraded.WithLabelValues(routine, column).Add(float64(n))
}

// WriteTextfile writes every collected metric in the text exposition format.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
