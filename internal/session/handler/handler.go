// Package handler exposes session lifecycle over HTTP. Creation is invoked
// by the identity collaborator after it has verified credentials and the
// second factor; the engine only tracks the resulting session.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sentra/internal/session"
	"sentra/internal/transport/http/shared"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

// Registry is the slice of the session registry the handler needs.
type Registry interface {
	Create(ctx context.Context, params session.CreateParams) (session.Session, error)
	Terminate(ctx context.Context, sessionID id.SessionID) error
}

type Handler struct {
	logger   *slog.Logger
	registry Registry
}

func New(logger *slog.Logger, registry Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.create)
		r.Delete("/{sessionID}", h.terminate)
	})
}

type createRequest struct {
	ActorID     string   `json:"actor_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	MFAVerified bool     `json:"mfa_verified"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	actorID, err := id.ParseActorID(req.ActorID)
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	sess, err := h.registry.Create(ctx, session.CreateParams{
		ActorID:     actorID,
		Role:        req.Role,
		Permissions: req.Permissions,
		SourceIP:    requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		MFAVerified: req.MFAVerified,
	})
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	if err := h.registry.Terminate(ctx, sessionID); err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}
