// Package session tracks authenticated sessions and their freshness. A
// session is valid only while its idle window is open and MFA was verified
// at creation; sensitive routes re-assert MFA per request on top of this.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sentra/internal/audit"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/privacy"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

// DefaultIdleTimeout is the idle window after which a session expires.
const DefaultIdleTimeout = 30 * time.Minute

// Recorder writes session lifecycle events to the ledger.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Registry struct {
	store       Store
	idleTimeout time.Duration
	ledger      Recorder
	logger      *slog.Logger

	// onActive receives +1 on create and -1 on terminate or expiry.
	onActive func(delta int)
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithIdleTimeout(timeout time.Duration) Option {
	return func(r *Registry) { r.idleTimeout = timeout }
}

// WithActiveHook registers a callback tracking the active-session count.
func WithActiveHook(fn func(delta int)) Option {
	return func(r *Registry) { r.onActive = fn }
}

func NewRegistry(store Store, ledger Recorder, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		idleTimeout: DefaultIdleTimeout,
		ledger:      ledger,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateParams carries everything fixed at session creation.
type CreateParams struct {
	ActorID     id.ActorID
	Role        string
	Permissions []string
	SourceIP    string
	UserAgent   string
	MFAVerified bool
}

// Create registers a new session for an authenticated actor.
func (r *Registry) Create(ctx context.Context, params CreateParams) (Session, error) {
	now := requestcontext.Now(ctx)
	session := Session{
		ID:                id.NewSessionID(),
		ActorID:           params.ActorID,
		Role:              params.Role,
		Permissions:       params.Permissions,
		StartedAt:         now,
		LastActivityAt:    now,
		SourceIP:          params.SourceIP,
		DeviceFingerprint: Fingerprint(params.UserAgent),
		MFAVerified:       params.MFAVerified,
	}
	if err := r.store.Save(ctx, session); err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "session save failed")
	}
	if r.onActive != nil {
		r.onActive(1)
	}
	r.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionSessionCreated,
		Outcome:   audit.OutcomeSuccess,
		ActorID:   params.ActorID.String(),
		SessionID: session.ID.String(),
		SourceIP:  params.SourceIP,
		RiskLevel: audit.RiskLow,
		Flags:     audit.ComplianceFlags{HIPAAOk: true, NPHIESOk: true, Authorized: true},
	})
	r.logger.Info("session created",
		"session_id", session.ID,
		"role", session.Role,
		"source_ip", privacy.AnonymizeIP(session.SourceIP),
	)
	return session, nil
}

// Validate returns the session iff it exists, is within the idle window, and
// was created with verified MFA. An expired session is removed on sight.
func (r *Registry) Validate(ctx context.Context, sessionID id.SessionID) (Session, error) {
	session, err := r.store.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Session{}, dErrors.New(dErrors.CodeInvalidSession, "session not found")
	}
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	now := requestcontext.Now(ctx)
	if session.ExpiredAt(now, r.idleTimeout) {
		r.expire(ctx, session)
		return Session{}, dErrors.New(dErrors.CodeSessionExpired, "session expired")
	}
	if !session.MFAVerified {
		return Session{}, dErrors.New(dErrors.CodeMFARequired, "session lacks verified MFA")
	}
	return session, nil
}

// Touch extends a still-valid session's idle window.
func (r *Registry) Touch(ctx context.Context, sessionID id.SessionID) error {
	session, err := r.store.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeInvalidSession, "session not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	now := requestcontext.Now(ctx)
	if session.ExpiredAt(now, r.idleTimeout) {
		r.expire(ctx, session)
		return dErrors.New(dErrors.CodeSessionExpired, "session expired")
	}
	session.LastActivityAt = now
	if err := r.store.Save(ctx, session); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "session save failed")
	}
	return nil
}

// Terminate removes a session on explicit logout.
func (r *Registry) Terminate(ctx context.Context, sessionID id.SessionID) error {
	session, err := r.store.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeInvalidSession, "session not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	if err := r.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "session delete failed")
	}
	if r.onActive != nil {
		r.onActive(-1)
	}
	r.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionSessionTerminated,
		Outcome:   audit.OutcomeSuccess,
		ActorID:   session.ActorID.String(),
		SessionID: session.ID.String(),
		SourceIP:  session.SourceIP,
		RiskLevel: audit.RiskLow,
		Flags:     audit.ComplianceFlags{HIPAAOk: true, NPHIESOk: true, Authorized: true},
	})
	return nil
}

// Sweep removes expired sessions and reports how many it removed. The ID
// snapshot is taken up front so no store lock is held across the walk, and
// each session is re-checked individually so a concurrent Touch wins.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	ids, err := r.store.IDs(ctx)
	if err != nil {
		r.logger.Error("session sweep scan failed", "error", err)
		return 0
	}
	removed := 0
	for _, sid := range ids {
		session, err := r.store.FindByID(ctx, sid)
		if err != nil {
			continue
		}
		if !session.ExpiredAt(now, r.idleTimeout) {
			continue
		}
		r.expire(ctx, session)
		removed++
	}
	return removed
}

// RunSweep sweeps on the given interval until ctx is done.
func (r *Registry) RunSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := r.Sweep(ctx, time.Now()); removed > 0 {
				r.logger.Info("expired sessions swept", "removed", removed)
			}
		}
	}
}

func (r *Registry) expire(ctx context.Context, session Session) {
	if err := r.store.Delete(ctx, session.ID); err != nil {
		return
	}
	if r.onActive != nil {
		r.onActive(-1)
	}
	r.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionSessionExpired,
		Outcome:   audit.OutcomeWarning,
		ActorID:   session.ActorID.String(),
		SessionID: session.ID.String(),
		SourceIP:  session.SourceIP,
		RiskLevel: audit.RiskLow,
		Flags:     audit.ComplianceFlags{HIPAAOk: true, NPHIESOk: true, Authorized: true},
	})
}
