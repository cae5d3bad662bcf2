package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisWindowPrefix = "sentra:rl:"
	redisBlockPrefix  = "sentra:block:"
)

// RedisWindowStore shares fixed windows across instances. The counter key
// carries the window's TTL, so expiry doubles as the window reset.
type RedisWindowStore struct {
	client *redis.Client
}

func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	rkey := redisWindowPrefix + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.ExpireNX(ctx, rkey, window)
	ttl := pipe.TTL(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate window incr: %w", err)
	}

	count := int(incr.Val())
	resetAt := time.Now().Add(ttl.Val())
	if count > limit {
		return Result{Allowed: false, Remaining: 0, Limit: limit, ResetAt: resetAt}, nil
	}
	return Result{Allowed: true, Remaining: limit - count, Limit: limit, ResetAt: resetAt}, nil
}

func (s *RedisWindowStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisWindowPrefix+key).Err()
}

// RedisBlocklist shares hard blocks across instances; Redis TTL handles
// expiry, so no sweep loop is needed.
type RedisBlocklist struct {
	client *redis.Client
}

func NewRedisBlocklist(client *redis.Client) *RedisBlocklist {
	return &RedisBlocklist{client: client}
}

func (b *RedisBlocklist) Block(ctx context.Context, ip string, ttl time.Duration, reason string) error {
	return b.client.Set(ctx, redisBlockPrefix+ip, reason, ttl).Err()
}

func (b *RedisBlocklist) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := b.client.Exists(ctx, redisBlockPrefix+ip).Result()
	if err != nil {
		return false, fmt.Errorf("blocklist lookup: %w", err)
	}
	return n > 0, nil
}

func (b *RedisBlocklist) Unblock(ctx context.Context, ip string) error {
	return b.client.Del(ctx, redisBlockPrefix+ip).Err()
}
