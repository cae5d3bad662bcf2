// Package handler exposes the blocklist admin surface: the explicit unblock
// that clears a hard block ahead of its TTL.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sentra/internal/transport/http/shared"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

// Limiter is the slice of the rate limiter the admin surface needs.
type Limiter interface {
	Unblock(ctx context.Context, ip string) error
}

type Handler struct {
	logger  *slog.Logger
	limiter Limiter
}

func New(logger *slog.Logger, limiter Limiter) *Handler {
	return &Handler{logger: logger, limiter: limiter}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/ratelimit/unblock", h.unblock)
}

type unblockRequest struct {
	IP string `json:"ip"`
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req unblockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	if net.ParseIP(req.IP) == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "ip is not a valid address"), requestID)
		return
	}
	if err := h.limiter.Unblock(ctx, req.IP); err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}
