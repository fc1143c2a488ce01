package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, r *PrometheusRecorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestRecorderCounters(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()
	r.Observe(ctx, "tissue_expression", true, 20*time.Millisecond)
	r.Observe(ctx, "tissue_expression", false, time.Millisecond)
	r.Observe(ctx, "", true, time.Millisecond)
	r.RowsRead("gtex", 4)
	r.RowsWritten("output_tissue_expression", 4)
	r.Degraded("tissue_expression", "tissue_label", 2)
	r.Degraded("tissue_expression", "tissue_label", 0)

	cases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"targetprep_routine_runs_total", map[string]string{"routine": "tissue_expression", "status": "success"}, 1},
		{"targetprep_routine_runs_total", map[string]string{"routine": "tissue_expression", "status": "error"}, 1},
		{"targetprep_rows_read_total", map[string]string{"dataset": "gtex"}, 4},
		{"targetprep_rows_written_total", map[string]string{"dataset": "output_tissue_expression"}, 4},
		{"targetprep_degraded_values_total", map[string]string{"routine": "tissue_expression", "column": "tissue_label"}, 2},
	}
	for _, tc := range cases {
		if got := counterValue(t, r, tc.name, tc.labels); got != tc.want {
			t.Errorf("%s%v = %v, want %v", tc.name, tc.labels, got, tc.want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewPrometheusRecorder()
	r.Observe(context.Background(), "pharmaprojects", true, time.Second)
	path := filepath.Join(t.TempDir(), "targetprep.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `targetprep_routine_runs_total{routine="pharmaprojects",status="success"} 1`) {
		t.Fatalf("unexpected exposition:\n%s", b)
	}
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
