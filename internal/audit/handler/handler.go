// Package handler exposes the audit ledger over HTTP: a filtered query
// endpoint and an ingestion endpoint for entries produced outside the engine.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/audit"
	"sentra/internal/transport/http/shared"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

// Ledger is the slice of the audit pipeline the handler needs.
type Ledger interface {
	Record(ctx context.Context, entry audit.Entry)
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

type Handler struct {
	logger *slog.Logger
	ledger Ledger
}

func New(logger *slog.Logger, ledger Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/events", h.queryEvents)
		r.Post("/events", h.recordEvent)
	})
}

// queryEvents returns matching entries newest-first. Filters come from query
// parameters: actor_id, action, from, to (RFC 3339), limit.
func (h *Handler) queryEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}

	entries, err := h.ledger.Query(ctx, filter)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "query failed"), requestID)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}

// recordEvent ingests an externally-sourced entry. The ledger assigns the ID
// and timestamp when absent, so callers only need action, outcome and source.
func (h *Handler) recordEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var entry audit.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	if entry.Action == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "action is required"), requestID)
		return
	}
	if entry.Outcome == "" {
		entry.Outcome = audit.OutcomeSuccess
	}
	if entry.SourceIP == "" {
		entry.SourceIP = requestcontext.ClientIP(ctx)
	}

	h.ledger.Record(ctx, entry)
	shared.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		ActorID: q.Get("actor_id"),
		Action:  audit.Action(q.Get("action")),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC 3339")
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC 3339")
		}
		filter.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}
