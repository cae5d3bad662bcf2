package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/audit"
	id "sentra/pkg/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
}

func entryAt(action audit.Action, actorID string, at time.Time) audit.Entry {
	return audit.Entry{
		ID:        id.NewEntryID(),
		Timestamp: at,
		Action:    action,
		Outcome:   audit.OutcomeSuccess,
		ActorID:   actorID,
		SourceIP:  "10.0.0.1",
		RiskLevel: audit.RiskLow,
	}
}

func (s *InMemoryStoreSuite) TestEvictsOldestPastCap() {
	evicted := 0
	store := New(3, WithEvictHook(func(n int) { evicted += n }))

	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Require().NoError(store.Append(s.ctx, entryAt("a", "actor", base.Add(time.Duration(i)*time.Second))))
	}

	s.Equal(2, evicted)
	s.Equal(3, store.Len())

	entries, err := store.Query(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Len(entries, 3)
	// Newest first; the two oldest are gone.
	s.Equal(base.Add(4*time.Second), entries[0].Timestamp)
	s.Equal(base.Add(2*time.Second), entries[2].Timestamp)
}

func (s *InMemoryStoreSuite) TestQueryFilters() {
	store := New(100)
	base := time.Now()
	s.Require().NoError(store.Append(s.ctx, entryAt("login", "alice", base)))
	s.Require().NoError(store.Append(s.ctx, entryAt("login", "bob", base.Add(time.Second))))
	s.Require().NoError(store.Append(s.ctx, entryAt("logout", "alice", base.Add(2*time.Second))))

	s.Run("by actor", func() {
		entries, err := store.Query(s.ctx, audit.Filter{ActorID: "alice"})
		s.Require().NoError(err)
		s.Len(entries, 2)
		s.Equal(audit.Action("logout"), entries[0].Action)
	})

	s.Run("by action", func() {
		entries, err := store.Query(s.ctx, audit.Filter{Action: "login"})
		s.Require().NoError(err)
		s.Len(entries, 2)
	})

	s.Run("by time range", func() {
		entries, err := store.Query(s.ctx, audit.Filter{
			From: base.Add(500 * time.Millisecond),
			To:   base.Add(1500 * time.Millisecond),
		})
		s.Require().NoError(err)
		s.Len(entries, 1)
		s.Equal("bob", entries[0].ActorID)
	})

	s.Run("with limit", func() {
		entries, err := store.Query(s.ctx, audit.Filter{Limit: 1})
		s.Require().NoError(err)
		s.Len(entries, 1)
		s.Equal(audit.Action("logout"), entries[0].Action)
	})
}
