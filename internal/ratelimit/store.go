package ratelimit

import (
	"context"
	"time"
)

// WindowStore counts requests per key within fixed windows.
type WindowStore interface {
	// Allow increments the counter for key and reports whether the request
	// fits within limit for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Reset(ctx context.Context, key string) error
}

// Blocklist tracks hard-blocked client IPs.
type Blocklist interface {
	Block(ctx context.Context, ip string, ttl time.Duration, reason string) error
	IsBlocked(ctx context.Context, ip string) (bool, error)
	Unblock(ctx context.Context, ip string) error
}
