package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowDeniesPastLimit(t *testing.T) {
	store := NewInMemoryWindowStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := store.Allow(ctx, "10.0.0.1|/login", 5, time.Minute)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, 4-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "10.0.0.1|/login", 5, time.Minute)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, 0, result.Remaining)
	require.Equal(t, 5, result.Limit)
}

func TestWindowKeysAreIndependent(t *testing.T) {
	store := NewInMemoryWindowStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "10.0.0.1|/login", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "10.0.0.2|/login", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestWindowResetsAfterElapsing(t *testing.T) {
	store := NewInMemoryWindowStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "key", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "key", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(30 * time.Millisecond)
	result, err = store.Allow(ctx, "key", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestWindowReset(t *testing.T) {
	store := NewInMemoryWindowStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "key", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "key"))

	result, err := store.Allow(ctx, "key", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestCleanupDropsOnlyElapsedWindows(t *testing.T) {
	store := NewInMemoryWindowStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "short", 1, 10*time.Millisecond)
	require.NoError(t, err)
	_, err = store.Allow(ctx, "long", 1, time.Hour)
	require.NoError(t, err)

	require.Equal(t, 1, store.Cleanup(time.Now().Add(time.Second)))
	require.Equal(t, 0, store.Cleanup(time.Now().Add(time.Second)))
}

func TestBlocklistExpiry(t *testing.T) {
	bl := NewInMemoryBlocklist()
	ctx := context.Background()

	require.NoError(t, bl.Block(ctx, "10.0.0.1", time.Hour, "test"))
	blocked, err := bl.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, blocked)

	require.NoError(t, bl.Block(ctx, "10.0.0.2", time.Nanosecond, "test"))
	time.Sleep(time.Millisecond)
	blocked, err = bl.IsBlocked(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, bl.Unblock(ctx, "10.0.0.1"))
	blocked, err = bl.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, blocked)

	require.Empty(t, bl.Entries())
}
