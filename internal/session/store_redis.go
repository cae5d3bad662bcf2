package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

const redisKeyPrefix = "sentra:session:"

// RedisStore persists sessions in Redis with a TTL safety net: even if the
// sweep never runs, Redis expires the key twice past the idle timeout.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, idleTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: 2 * idleTimeout}
}

func (s *RedisStore) Save(ctx context.Context, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+session.ID.String(), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (Session, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	n, err := s.client.Del(ctx, redisKeyPrefix+sessionID.String()).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) IDs(ctx context.Context) ([]id.SessionID, error) {
	var (
		ids    []id.SessionID
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range keys {
			sid, err := id.ParseSessionID(strings.TrimPrefix(key, redisKeyPrefix))
			if err != nil {
				continue
			}
			ids = append(ids, sid)
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}
