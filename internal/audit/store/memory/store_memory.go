// Package memory provides the capped in-memory ledger store. The cap is a
// deliberate retention decision: once exceeded, the oldest entries are
// evicted and the eviction is counted so operators can size the cap or move
// to the Postgres store, which has no cap.
package memory

import (
	"context"
	"sync"

	"sentra/internal/audit"
)

type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
	cap     int

	onEvict func(n int)
}

type Option func(*Store)

// WithEvictHook registers a callback invoked with the number of entries
// evicted past the cap.
func WithEvictHook(fn func(n int)) Option {
	return func(s *Store) { s.onEvict = fn }
}

// New creates a store holding at most capacity entries.
func New(capacity int, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = 10000
	}
	s := &Store{cap: capacity}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.cap; over > 0 {
		s.entries = append([]audit.Entry{}, s.entries[over:]...)
		if s.onEvict != nil {
			s.onEvict(over)
		}
	}
	return nil
}

// Query returns matching entries newest-first. Entries are stored in append
// order, so iteration walks backwards and stops at the limit.
func (s *Store) Query(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}

	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.Matches(s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// Len reports the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
