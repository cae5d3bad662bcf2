package ratelimit

import (
	"context"
	"sync"
	"time"
)

type fixedWindow struct {
	count   int
	resetAt time.Time
}

// InMemoryWindowStore implements WindowStore with per-key fixed windows.
// Single-process only; use RedisWindowStore when limits must be shared
// across instances.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
}

func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{windows: make(map[string]*fixedWindow)}
}

func (s *InMemoryWindowStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, Limit: limit, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, Limit: limit, ResetAt: w.resetAt}, nil
}

func (s *InMemoryWindowStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Cleanup drops windows that have already reset. Candidates are collected
// first so the lock is never held across a full scan plus deletions.
func (s *InMemoryWindowStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	var stale []string
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			stale = append(stale, key)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, key := range stale {
		s.mu.Lock()
		if w, ok := s.windows[key]; ok && !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// RunCleanup prunes stale windows on the given interval until ctx is done.
func (s *InMemoryWindowStore) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Cleanup(time.Now())
		}
	}
}
