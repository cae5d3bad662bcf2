// Package handler exposes the fraud scorer over HTTP: scoring, provider
// risk profiles, and the periodic aggregate report.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/fraud"
	"sentra/internal/transport/http/shared"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

// Scorer is the slice of the fraud pipeline the handler needs.
type Scorer interface {
	Score(ctx context.Context, payment fraud.PaymentContext) (fraud.FraudResult, error)
	Profiles() *fraud.ProfileStore
	ReportRange(from, to time.Time) fraud.Report
}

type Handler struct {
	logger *slog.Logger
	scorer Scorer
}

func New(logger *slog.Logger, scorer Scorer) *Handler {
	return &Handler{logger: logger, scorer: scorer}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/fraud", func(r chi.Router) {
		r.Post("/score", h.score)
		r.Get("/providers/{providerID}", h.providerProfile)
		r.Get("/report", h.report)
	})
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var payment fraud.PaymentContext
	if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	result, err := h.scorer.Score(ctx, payment)
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) providerProfile(w http.ResponseWriter, r *http.Request) {
	requestID := requestcontext.RequestID(r.Context())
	providerID := chi.URLParam(r, "providerID")
	profile, ok := h.scorer.Profiles().Profile(providerID)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "provider profile not found"), requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}

// report aggregates over [from, to]; both default to the trailing 30 days.
func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	requestID := requestcontext.RequestID(r.Context())
	now := requestcontext.Now(r.Context())
	from := now.Add(-30 * 24 * time.Hour)
	to := now

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC 3339"), requestID)
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC 3339"), requestID)
			return
		}
		to = t
	}
	shared.WriteJSON(w, http.StatusOK, h.scorer.ReportRange(from, to))
}
