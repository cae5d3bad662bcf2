//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/session"
	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedisStore(s.redis.Client, 30*time.Minute)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makeSession() session.Session {
	now := time.Now().Truncate(time.Second)
	return session.Session{
		ID:                id.NewSessionID(),
		ActorID:           id.NewActorID(),
		Role:              "clinician",
		Permissions:       []string{"phi:read", "claims:submit"},
		StartedAt:         now,
		LastActivityAt:    now,
		SourceIP:          "10.0.0.1",
		DeviceFingerprint: "Chrome 120 on Windows",
		MFAVerified:       true,
	}
}

func (s *RedisStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	sess := makeSession()
	s.Require().NoError(s.store.Save(ctx, sess))

	got, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.ID, got.ID)
	s.Equal(sess.ActorID, got.ActorID)
	s.Equal(sess.Permissions, got.Permissions)
	s.Equal(sess.DeviceFingerprint, got.DeviceFingerprint)
	s.True(got.MFAVerified)
	s.Equal(sess.LastActivityAt.UnixNano(), got.LastActivityAt.UnixNano())
}

func (s *RedisStoreSuite) TestFindMissingSession() {
	_, err := s.store.FindByID(context.Background(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSaveSetsTTLSafetyNet() {
	ctx := context.Background()
	sess := makeSession()
	s.Require().NoError(s.store.Save(ctx, sess))

	ttl, err := s.redis.Client.TTL(ctx, "sentra:session:"+sess.ID.String()).Result()
	s.Require().NoError(err)
	// Twice the idle timeout, so Redis expiry backstops the sweep.
	s.Greater(ttl, 59*time.Minute)
	s.LessOrEqual(ttl, time.Hour)
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	sess := makeSession()
	s.Require().NoError(s.store.Save(ctx, sess))
	s.Require().NoError(s.store.Delete(ctx, sess.ID))

	_, err := s.store.FindByID(ctx, sess.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(ctx, sess.ID), sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestIDsScansAllSessions() {
	ctx := context.Background()
	want := make(map[id.SessionID]bool)
	for i := 0; i < 5; i++ {
		sess := makeSession()
		s.Require().NoError(s.store.Save(ctx, sess))
		want[sess.ID] = true
	}

	ids, err := s.store.IDs(ctx)
	s.Require().NoError(err)
	s.Len(ids, 5)
	for _, sid := range ids {
		s.True(want[sid])
	}
}
