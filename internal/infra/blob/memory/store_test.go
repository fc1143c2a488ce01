package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"targetprep/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	md := map[string]string{"routine": "pharmaprojects"}
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("v1")), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["routine"] = "mutated"
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("v2")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("v3")), core.PutOptions{Overwrite: true, Metadata: map[string]string{"routine": "x"}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	info, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "v3" || info.Metadata["routine"] != "x" {
		t.Fatalf("unexpected blob %q %v", b, info.Metadata)
	}
	if ok, _ := s.Delete(ctx, "k"); !ok {
		t.Fatalf("expected delete true")
	}
	if ok, _ := s.Delete(ctx, "k"); ok {
		t.Fatalf("expected delete false")
	}
	if _, err := s.Head(ctx, "k"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
