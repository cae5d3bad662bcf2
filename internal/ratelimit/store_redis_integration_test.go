//go:build integration

package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/ratelimit"
	"sentra/pkg/testutil/containers"
)

type RedisLimitSuite struct {
	suite.Suite
	redis     *containers.RedisContainer
	store     *ratelimit.RedisWindowStore
	blocklist *ratelimit.RedisBlocklist
}

func TestRedisLimitSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLimitSuite))
}

func (s *RedisLimitSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = ratelimit.NewRedisWindowStore(s.redis.Client)
	s.blocklist = ratelimit.NewRedisBlocklist(s.redis.Client)
}

func (s *RedisLimitSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLimitSuite) TestWindowDeniesPastLimit() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		result, err := s.store.Allow(ctx, "10.0.0.1|/login", 5, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(4-i, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "10.0.0.1|/login", 5, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *RedisLimitSuite) TestWindowResetsWithKeyExpiry() {
	ctx := context.Background()
	result, err := s.store.Allow(ctx, "key", 1, time.Second)
	s.Require().NoError(err)
	s.True(result.Allowed)

	result, err = s.store.Allow(ctx, "key", 1, time.Second)
	s.Require().NoError(err)
	s.False(result.Allowed)

	time.Sleep(1100 * time.Millisecond)
	result, err = s.store.Allow(ctx, "key", 1, time.Second)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

// Concurrent increments must never admit more than the limit; the pipelined
// INCR is the atomicity guarantee under test.
func (s *RedisLimitSuite) TestConcurrentAllowsStayWithinLimit() {
	ctx := context.Background()
	const goroutines = 50
	const limit = 10

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(ctx, "concurrent", limit, time.Minute)
			if err == nil && result.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(limit), admitted.Load())
}

func (s *RedisLimitSuite) TestBlocklistLifecycle() {
	ctx := context.Background()

	blocked, err := s.blocklist.IsBlocked(ctx, "10.0.0.9")
	s.Require().NoError(err)
	s.False(blocked)

	s.Require().NoError(s.blocklist.Block(ctx, "10.0.0.9", time.Hour, "rate limit escalation"))
	blocked, err = s.blocklist.IsBlocked(ctx, "10.0.0.9")
	s.Require().NoError(err)
	s.True(blocked)

	s.Require().NoError(s.blocklist.Unblock(ctx, "10.0.0.9"))
	blocked, err = s.blocklist.IsBlocked(ctx, "10.0.0.9")
	s.Require().NoError(err)
	s.False(blocked)
}

func (s *RedisLimitSuite) TestBlockExpiresWithTTL() {
	ctx := context.Background()
	s.Require().NoError(s.blocklist.Block(ctx, "10.0.0.9", time.Second, "test"))

	time.Sleep(1100 * time.Millisecond)
	blocked, err := s.blocklist.IsBlocked(ctx, "10.0.0.9")
	s.Require().NoError(err)
	s.False(blocked)
}
