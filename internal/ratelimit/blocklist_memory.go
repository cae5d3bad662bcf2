package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryBlocklist holds hard blocks with expiry timestamps. Lookup is on
// every request, so reads take only an RLock.
type InMemoryBlocklist struct {
	mu      sync.RWMutex
	entries map[string]BlockEntry
}

func NewInMemoryBlocklist() *InMemoryBlocklist {
	return &InMemoryBlocklist{entries: make(map[string]BlockEntry)}
}

func (b *InMemoryBlocklist) Block(_ context.Context, ip string, ttl time.Duration, reason string) error {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[ip] = BlockEntry{IP: ip, Reason: reason, BlockedAt: now, Until: now.Add(ttl)}
	return nil
}

func (b *InMemoryBlocklist) IsBlocked(_ context.Context, ip string) (bool, error) {
	b.mu.RLock()
	entry, ok := b.entries[ip]
	b.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.Until) {
		b.mu.Lock()
		// Re-check under the write lock; a concurrent Block may have renewed it.
		if cur, ok := b.entries[ip]; ok && time.Now().After(cur.Until) {
			delete(b.entries, ip)
		}
		b.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (b *InMemoryBlocklist) Unblock(_ context.Context, ip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, ip)
	return nil
}

// Entries snapshots the current blocklist for the admin surface.
func (b *InMemoryBlocklist) Entries() []BlockEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BlockEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, entry)
	}
	return out
}

// Expire removes entries whose TTL has elapsed.
func (b *InMemoryBlocklist) Expire(now time.Time) int {
	b.mu.RLock()
	var stale []string
	for ip, entry := range b.entries {
		if now.After(entry.Until) {
			stale = append(stale, ip)
		}
	}
	b.mu.RUnlock()

	removed := 0
	for _, ip := range stale {
		b.mu.Lock()
		if entry, ok := b.entries[ip]; ok && now.After(entry.Until) {
			delete(b.entries, ip)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// RunExpiry prunes expired blocks on the given interval until ctx is done.
func (b *InMemoryBlocklist) RunExpiry(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Expire(time.Now())
		}
	}
}
