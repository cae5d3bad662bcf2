// Package handler exposes detected threats and the mitigation flip.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sentra/internal/threat"
	"sentra/internal/transport/http/shared"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

// Detector is the slice of the threat detector the handler needs.
type Detector interface {
	Threats(limit int) []threat.SecurityThreat
	Mitigate(ctx context.Context, threatID id.ThreatID) error
}

type Handler struct {
	logger   *slog.Logger
	detector Detector
}

func New(logger *slog.Logger, detector Detector) *Handler {
	return &Handler{logger: logger, detector: detector}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/threats", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/{threatID}/mitigate", h.mitigate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requestID := requestcontext.RequestID(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"), requestID)
			return
		}
		limit = n
	}
	threats := h.detector.Threats(limit)
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"threats": threats,
		"count":   len(threats),
	})
}

func (h *Handler) mitigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	threatID, err := id.ParseThreatID(chi.URLParam(r, "threatID"))
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	if err := h.detector.Mitigate(ctx, threatID); err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "mitigated"})
}
