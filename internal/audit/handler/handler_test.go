package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"sentra/internal/audit"
	"sentra/internal/audit/store/memory"
	id "sentra/pkg/domain"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *memory.Store
	ledger *audit.Ledger
	cancel context.CancelFunc
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = memory.New(100)
	s.ledger = audit.NewLedger(s.store, 64)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = s.ledger.Run(ctx) }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(logger, s.ledger)

	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.cancel()
}

func (s *HandlerSuite) seed(action audit.Action, actorID string, at time.Time) {
	s.Require().NoError(s.store.Append(context.Background(), audit.Entry{
		ID:        id.NewEntryID(),
		Timestamp: at,
		Action:    action,
		Outcome:   audit.OutcomeSuccess,
		ActorID:   actorID,
		SourceIP:  "10.0.0.1",
		RiskLevel: audit.RiskLow,
	}))
}

type eventsResponse struct {
	Events []audit.Entry `json:"events"`
	Count  int           `json:"count"`
}

func (s *HandlerSuite) get(target string) (*httptest.ResponseRecorder, eventsResponse) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp eventsResponse
	if rec.Code == http.StatusOK {
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec, resp
}

func (s *HandlerSuite) TestQueryEmptyLedger() {
	rec, resp := s.get("/audit/events")
	s.Equal(http.StatusOK, rec.Code)
	s.Zero(resp.Count)
	s.NotNil(resp.Events)
}

func (s *HandlerSuite) TestQueryFilters() {
	base := time.Now()
	s.seed("login", "alice", base)
	s.seed("login", "bob", base.Add(time.Second))
	s.seed("logout", "alice", base.Add(2*time.Second))

	s.Run("by actor", func() {
		rec, resp := s.get("/audit/events?actor_id=alice")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(2, resp.Count)
		// Newest first.
		s.Equal(audit.Action("logout"), resp.Events[0].Action)
	})

	s.Run("by action", func() {
		rec, resp := s.get("/audit/events?action=login")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(2, resp.Count)
	})

	s.Run("with limit", func() {
		rec, resp := s.get("/audit/events?limit=1")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(1, resp.Count)
	})

	s.Run("bad from", func() {
		rec, _ := s.get("/audit/events?from=yesterday")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad limit", func() {
		rec, _ := s.get("/audit/events?limit=-1")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestRecordEvent() {
	body, err := json.Marshal(map[string]any{
		"action":    "auth_failed",
		"outcome":   "failure",
		"source_ip": "203.0.113.9",
	})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/audit/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusAccepted, rec.Code)

	s.Require().Eventually(func() bool {
		entries, err := s.store.Query(context.Background(), audit.Filter{})
		return err == nil && len(entries) == 1
	}, time.Second, 5*time.Millisecond)

	entries, err := s.store.Query(context.Background(), audit.Filter{})
	s.Require().NoError(err)
	s.Equal(audit.Action("auth_failed"), entries[0].Action)
	s.Equal(audit.OutcomeFailure, entries[0].Outcome)
	s.False(entries[0].Timestamp.IsZero())
}

func (s *HandlerSuite) TestRecordRejectsInvalidBody() {
	req := httptest.NewRequest(http.MethodPost, "/audit/events", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRecordRequiresAction() {
	req := httptest.NewRequest(http.MethodPost, "/audit/events", bytes.NewReader([]byte(`{"outcome":"success"}`)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}
