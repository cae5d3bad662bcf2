// Package handler exposes envelope encryption to trusted internal callers.
// These routes sit in the guard's phi class, so they only run after the MFA
// and compliance checks have passed.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sentra/internal/phi"
	"sentra/internal/transport/http/shared"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

// Cipher is the slice of the PHI cipher the handler needs.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte, req phi.AccessRequest) (phi.Envelope, error)
	Decrypt(ctx context.Context, env phi.Envelope, req phi.AccessRequest) ([]byte, error)
}

// Policy administers per-actor access rules.
type Policy interface {
	Grant(actorID id.ActorID, rule phi.AccessRule)
	Revoke(actorID id.ActorID)
}

type Handler struct {
	logger *slog.Logger
	cipher Cipher
	policy Policy
}

func New(logger *slog.Logger, cipher Cipher, policy Policy) *Handler {
	return &Handler{logger: logger, cipher: cipher, policy: policy}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/phi", func(r chi.Router) {
		r.Post("/encrypt", h.encrypt)
		r.Post("/decrypt", h.decrypt)
		r.Put("/policy/{actorID}", h.grant)
		r.Delete("/policy/{actorID}", h.revoke)
	})
}

type grantRequest struct {
	AllowedTypes []phi.DataType `json:"allowed_types"`
	HourFrom     int            `json:"hour_from"`
	HourTo       int            `json:"hour_to"`
	DailyCap     int            `json:"daily_cap"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	requestID := requestcontext.RequestID(r.Context())
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	if len(req.AllowedTypes) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "allowed_types is required"), requestID)
		return
	}
	h.policy.Grant(actorID, phi.AccessRule{
		AllowedTypes: req.AllowedTypes,
		HourFrom:     req.HourFrom,
		HourTo:       req.HourTo,
		DailyCap:     req.DailyCap,
	})
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	requestID := requestcontext.RequestID(r.Context())
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	h.policy.Revoke(actorID)
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type encryptRequest struct {
	Plaintext []byte       `json:"plaintext"`
	DataType  phi.DataType `json:"data_type"`
	Resource  string       `json:"resource,omitempty"`
}

func (h *Handler) encrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	if len(req.Plaintext) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "plaintext is required"), requestID)
		return
	}
	env, err := h.cipher.Encrypt(ctx, req.Plaintext, phi.AccessRequest{
		ActorID:  requestcontext.ActorID(ctx),
		DataType: req.DataType,
		Resource: req.Resource,
	})
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, env)
}

type decryptRequest struct {
	Envelope phi.Envelope `json:"envelope"`
	DataType phi.DataType `json:"data_type"`
	Resource string       `json:"resource,omitempty"`
}

type decryptResponse struct {
	Plaintext []byte `json:"plaintext"`
}

func (h *Handler) decrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"), requestID)
		return
	}
	plaintext, err := h.cipher.Decrypt(ctx, req.Envelope, phi.AccessRequest{
		ActorID:  requestcontext.ActorID(ctx),
		DataType: req.DataType,
		Resource: req.Resource,
	})
	if err != nil {
		shared.WriteError(w, err, requestID)
		return
	}
	shared.WriteJSON(w, http.StatusOK, decryptResponse{Plaintext: plaintext})
}
