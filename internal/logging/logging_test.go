package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", FormatJSON)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("routine finished", "routine", "pharmaprojects", "rows", 3, "err", errors.New("boom"), "dangling")
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got["message"] != "routine finished" || got["level"] != "info" {
		t.Fatalf("unexpected envelope %v", got)
	}
	if got["routine"] != "pharmaprojects" || got["rows"] != float64(3) || got["err"] != "boom" || got["!BADKEY"] != "dangling" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", FormatJSON)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "column", "tissue_label")
	l.Error("shown too")
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", lines, buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("loaded", "dataset", "gtex")
	if !strings.Contains(buf.String(), "loaded") || !strings.Contains(buf.String(), "dataset=gtex") {
		t.Fatalf("unexpected console output %q", buf.String())
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud", FormatJSON); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
