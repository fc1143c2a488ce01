// Package memory implements an in-memory run journal.
package memory

import (
	"context"
	"sync"

	"targetprep/internal/journal/core"
)

// Store keeps journal entries in process memory.
type Store struct {
	mu      sync.RWMutex
	entries []core.Entry
}

// NewStore returns an empty in-memory journal.
func NewStore() *Store { return &Store{} }

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Append records a copy of e.
func (s *Store) Append(_ context.Context, e core.Entry) error {
	e.Outputs = append([]string(nil), e.Outputs...)
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		e := s.entries[i]
		e.Outputs = append([]string(nil), e.Outputs...)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
