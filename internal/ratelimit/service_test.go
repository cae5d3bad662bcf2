package ratelimit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentra/internal/audit"
	"sentra/internal/platform/config"
	dErrors "sentra/pkg/domain-errors"
)

type recorderStub struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recorderStub) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func loginResolver(max int) Resolver {
	return func(path string) (config.RouteLimit, bool) {
		if strings.HasPrefix(path, "/login") {
			return config.RouteLimit{Pattern: "/login", MaxRequests: max, Window: time.Minute}, true
		}
		return config.RouteLimit{}, false
	}
}

func TestAllowWithinLimit(t *testing.T) {
	limiter := NewLimiter(NewInMemoryWindowStore(), NewInMemoryBlocklist(), loginResolver(3), &recorderStub{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "10.0.0.1", "/login")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	_, err := limiter.Allow(ctx, "10.0.0.1", "/login")
	require.True(t, dErrors.HasCode(err, dErrors.CodeRateLimitExceeded))
}

func TestUnmatchedPathPassesUnmetered(t *testing.T) {
	limiter := NewLimiter(NewInMemoryWindowStore(), NewInMemoryBlocklist(), loginResolver(1), &recorderStub{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(ctx, "10.0.0.1", "/healthz")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
}

func TestRepeatedViolationsEscalateToHardBlock(t *testing.T) {
	rec := &recorderStub{}
	blocklist := NewInMemoryBlocklist()
	hardBlocks := 0
	limiter := NewLimiter(NewInMemoryWindowStore(), blocklist, loginResolver(2), rec,
		WithHardBlockHook(func() { hardBlocks++ }))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Allow(ctx, "10.0.0.1", "/login")
		require.NoError(t, err)
	}

	// Violations accumulate toward twice the route limit.
	for i := 0; i < 4; i++ {
		_, err := limiter.Allow(ctx, "10.0.0.1", "/login")
		require.True(t, dErrors.HasCode(err, dErrors.CodeRateLimitExceeded))

		blocked, blErr := blocklist.IsBlocked(ctx, "10.0.0.1")
		require.NoError(t, blErr)
		require.Equal(t, i == 3, blocked)
	}

	require.Equal(t, 1, hardBlocks)
	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionIPHardBlocked, rec.entries[0].Action)
	require.Equal(t, audit.RiskCritical, rec.entries[0].RiskLevel)
}

func TestUnblockClearsHardBlock(t *testing.T) {
	blocklist := NewInMemoryBlocklist()
	limiter := NewLimiter(NewInMemoryWindowStore(), blocklist, loginResolver(1), &recorderStub{})
	ctx := context.Background()

	require.NoError(t, blocklist.Block(ctx, "10.0.0.1", time.Hour, "test"))
	require.NoError(t, limiter.Unblock(ctx, "10.0.0.1"))

	blocked, err := blocklist.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, blocked)
}
