// Package guard orchestrates the request checks in a fixed order, cheapest
// first: IP block, rate limit, transport, auth/session, payload inspection,
// geo restriction, then the MFA and compliance requirements on PHI routes.
// The chain short-circuits on the first failure and every outcome, pass or
// fail, produces exactly one ledger entry.
package guard

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentra/internal/audit"
	"sentra/internal/guard/patterns"
	"sentra/internal/platform/config"
	"sentra/internal/ratelimit"
	"sentra/internal/session"
	"sentra/internal/transport/http/shared"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

const (
	headerSessionID    = "X-Session-ID"
	headerMFAAssertion = "X-MFA-Assertion"
	headerCompliance   = "X-Compliance-Framework"

	defaultMaxBodyBytes = 1 << 20
)

// SessionValidator is the slice of the session registry the guard needs.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID id.SessionID) (session.Session, error)
	Touch(ctx context.Context, sessionID id.SessionID) error
}

// Limiter admits requests and owns the hard blocklist.
type Limiter interface {
	Allow(ctx context.Context, clientIP, path string) (ratelimit.Result, error)
	Blocklist() ratelimit.Blocklist
}

// Recorder writes guard outcomes to the ledger.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Guard struct {
	cfg      func() *config.Config
	limiter  Limiter
	sessions SessionValidator
	ledger   Recorder
	registry *patterns.Registry
	geo      GeoResolver
	mfa      *MFAVerifier
	logger   *slog.Logger

	publicPrefixes []string
	maxBodyBytes   int64

	onDecision func(check string, allowed bool)
	onLatency  func(d time.Duration)
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// WithGeoResolver plugs in an IP-to-country provider. Without one the geo
// check passes everything.
func WithGeoResolver(geo GeoResolver) Option {
	return func(g *Guard) { g.geo = geo }
}

// WithPublicPrefixes marks path prefixes exempt from the auth/session check.
// All other checks still apply to them.
func WithPublicPrefixes(prefixes ...string) Option {
	return func(g *Guard) { g.publicPrefixes = prefixes }
}

func WithMaxBodyBytes(n int64) Option {
	return func(g *Guard) { g.maxBodyBytes = n }
}

// WithDecisionHook registers a callback per evaluated request with the check
// that decided the outcome.
func WithDecisionHook(fn func(check string, allowed bool)) Option {
	return func(g *Guard) { g.onDecision = fn }
}

// WithLatencyHook registers a callback observing chain evaluation time.
func WithLatencyHook(fn func(d time.Duration)) Option {
	return func(g *Guard) { g.onLatency = fn }
}

func New(cfg func() *config.Config, limiter Limiter, sessions SessionValidator, ledger Recorder, mfa *MFAVerifier, opts ...Option) *Guard {
	g := &Guard{
		cfg:          cfg,
		limiter:      limiter,
		sessions:     sessions,
		ledger:       ledger,
		registry:     patterns.Default(),
		mfa:          mfa,
		logger:       slog.Default(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// rejection carries everything needed to audit and answer a failed check.
type rejection struct {
	check  string
	err    error
	action audit.Action
	risk   audit.RiskLevel
	phi    bool
	reason string
}

// Middleware runs the chain ahead of the wrapped handler.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cfg := g.cfg()

		requestID := uuid.NewString()
		clientIP := clientIPOf(r)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithClientMetadata(ctx, clientIP, r.UserAgent())
		if cfg.Server.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Server.RequestTimeout)
			defer cancel()
		}

		w.Header().Set("X-Request-ID", requestID)
		SetSecurityHeaders(w)

		ctx, rej := g.evaluate(ctx, cfg, w, r, clientIP)
		if g.onLatency != nil {
			g.onLatency(time.Since(start))
		}
		if rej != nil {
			g.audit(ctx, r, clientIP, rej)
			if g.onDecision != nil {
				g.onDecision(rej.check, false)
			}
			shared.WriteError(w, rej.err, requestID)
			return
		}

		g.audit(ctx, r, clientIP, nil)
		if g.onDecision != nil {
			g.onDecision("allowed", true)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) evaluate(ctx context.Context, cfg *config.Config, w http.ResponseWriter, r *http.Request, clientIP string) (context.Context, *rejection) {
	// 1. Hard IP block. A blocklist read failure fails closed.
	blocked, err := g.limiter.Blocklist().IsBlocked(ctx, clientIP)
	if err != nil {
		return ctx, &rejection{
			check:  "ip_block",
			err:    dErrors.Wrap(err, dErrors.CodeInternal, "request rejected"),
			action: audit.ActionRequestBlocked,
			risk:   audit.RiskHigh,
			reason: "blocklist unavailable",
		}
	}
	if blocked {
		return ctx, &rejection{
			check:  "ip_block",
			err:    dErrors.New(dErrors.CodeIPBlocked, "source address is blocked"),
			action: audit.ActionRequestBlocked,
			risk:   audit.RiskHigh,
			reason: "ip blocked",
		}
	}

	// 2. Rate limit.
	result, err := g.limiter.Allow(ctx, clientIP, r.URL.Path)
	if result.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimitExceeded) {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())+1))
			return ctx, &rejection{
				check:  "rate_limit",
				err:    err,
				action: audit.ActionRateLimited,
				risk:   audit.RiskMedium,
				reason: "rate limit exceeded",
			}
		}
		return ctx, &rejection{
			check:  "rate_limit",
			err:    err,
			action: audit.ActionRequestBlocked,
			risk:   audit.RiskMedium,
			reason: "rate limiter unavailable",
		}
	}

	// 3. Transport.
	if cfg.Server.RequireHTTPS && !isHTTPS(r) {
		return ctx, &rejection{
			check:  "https",
			err:    dErrors.New(dErrors.CodeHTTPSRequired, "https is required"),
			action: audit.ActionHTTPSRejected,
			risk:   audit.RiskMedium,
			reason: "plaintext transport",
		}
	}

	// 4. Auth / session.
	if !g.isPublic(r.URL.Path) {
		next, rej := g.checkSession(ctx, r)
		if rej != nil {
			return ctx, rej
		}
		ctx = next
	}

	// 5. Payload inspection.
	if rej := g.inspect(r); rej != nil {
		return ctx, rej
	}

	// 6. Geo restriction.
	if rej := g.checkGeo(ctx, cfg, clientIP); rej != nil {
		return ctx, rej
	}

	// 7. PHI route requirements.
	if route, ok := cfg.LimitFor(r.URL.Path); ok && route.Class == "phi" {
		if r.Header.Get(headerCompliance) == "" {
			return ctx, &rejection{
				check:  "compliance",
				err:    dErrors.New(dErrors.CodeComplianceHeaderMissing, "compliance framework header required"),
				action: audit.ActionComplianceFailed,
				risk:   audit.RiskMedium,
				phi:    true,
				reason: "missing compliance header",
			}
		}
		actorID := requestcontext.ActorID(ctx)
		if err := g.mfa.Verify(r.Header.Get(headerMFAAssertion), actorID.String()); err != nil {
			return ctx, &rejection{
				check:  "mfa",
				err:    err,
				action: audit.ActionMFARejected,
				risk:   audit.RiskHigh,
				phi:    true,
				reason: "mfa assertion rejected",
			}
		}
		ctx = requestcontext.WithMFAAsserted(ctx, true)
	}

	return ctx, nil
}

func (g *Guard) checkSession(ctx context.Context, r *http.Request) (context.Context, *rejection) {
	raw := r.Header.Get(headerSessionID)
	if raw == "" {
		return ctx, &rejection{
			check:  "auth",
			err:    dErrors.New(dErrors.CodeAuthenticationRequired, "session header required"),
			action: audit.ActionAuthFailed,
			risk:   audit.RiskMedium,
			reason: "no session",
		}
	}
	sessionID, err := id.ParseSessionID(raw)
	if err != nil {
		return ctx, &rejection{
			check:  "auth",
			err:    dErrors.New(dErrors.CodeInvalidSession, "session id malformed"),
			action: audit.ActionAuthFailed,
			risk:   audit.RiskMedium,
			reason: "malformed session id",
		}
	}
	sess, err := g.sessions.Validate(ctx, sessionID)
	if err != nil {
		return ctx, &rejection{
			check:  "auth",
			err:    err,
			action: audit.ActionAuthFailed,
			risk:   audit.RiskHigh,
			reason: "session rejected",
		}
	}
	// Best effort: a failed touch must not fail an otherwise valid request.
	if err := g.sessions.Touch(ctx, sessionID); err != nil {
		g.logger.Warn("session touch failed", "error", err)
	}
	ctx = requestcontext.WithActorID(ctx, sess.ActorID)
	ctx = requestcontext.WithSessionID(ctx, sess.ID)
	return ctx, nil
}

func (g *Guard) inspect(r *http.Request) *rejection {
	if match, ok := g.registry.ScanString(r.URL.RawQuery); ok {
		return rejectionFor(match)
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, g.maxBodyBytes))
	if err != nil {
		return &rejection{
			check:  "payload",
			err:    dErrors.Wrap(err, dErrors.CodeInvalidInput, "unreadable request body"),
			action: audit.ActionPayloadRejected,
			risk:   audit.RiskMedium,
			reason: "unreadable body",
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if match, ok := g.registry.Scan(body); ok {
		return rejectionFor(match)
	}
	return nil
}

func rejectionFor(match patterns.Match) *rejection {
	if match.Category == patterns.CategoryUnencryptedPHI {
		return &rejection{
			check:  "payload",
			err:    dErrors.New(dErrors.CodeUnencryptedPHIDetected, "payload contains unencrypted protected data"),
			action: audit.ActionPayloadRejected,
			risk:   audit.RiskCritical,
			phi:    true,
			reason: match.Name,
		}
	}
	risk := audit.RiskHigh
	if match.Severity == patterns.SeverityMedium {
		risk = audit.RiskMedium
	}
	return &rejection{
		check:  "payload",
		err:    dErrors.New(dErrors.CodeMaliciousPayload, "payload rejected"),
		action: audit.ActionPayloadRejected,
		risk:   risk,
		reason: match.Name,
	}
}

func (g *Guard) checkGeo(ctx context.Context, cfg *config.Config, clientIP string) *rejection {
	if g.geo == nil {
		return nil
	}
	country, err := g.geo.Country(ctx, clientIP)
	if err != nil || country == "" {
		// Unknown origin passes; authenticated checks carry the real weight.
		return nil
	}
	denied := contains(cfg.Geo.Block, country) ||
		(len(cfg.Geo.Allow) > 0 && !contains(cfg.Geo.Allow, country))
	if !denied {
		return nil
	}
	return &rejection{
		check:  "geo",
		err:    dErrors.New(dErrors.CodeGeoBlocked, "origin not permitted"),
		action: audit.ActionGeoBlocked,
		risk:   audit.RiskMedium,
		reason: "geo restriction",
	}
}

func (g *Guard) audit(ctx context.Context, r *http.Request, clientIP string, rej *rejection) {
	entry := audit.Entry{
		SourceIP: clientIP,
		Resource: r.Method + " " + r.URL.Path,
	}
	if actorID := requestcontext.ActorID(ctx); !actorID.IsZero() {
		entry.ActorID = actorID.String()
	}
	if sessionID := requestcontext.SessionID(ctx); !sessionID.IsZero() {
		entry.SessionID = sessionID.String()
	}
	if rej == nil {
		entry.Action = audit.ActionRequestAllowed
		entry.Outcome = audit.OutcomeSuccess
		entry.RiskLevel = audit.RiskLow
		entry.Flags = audit.ComplianceFlags{
			HIPAAOk:    true,
			NPHIESOk:   true,
			PHITouched: requestcontext.MFAAsserted(ctx),
			Authorized: true,
		}
	} else {
		entry.Action = rej.action
		entry.Outcome = audit.OutcomeFailure
		entry.RiskLevel = rej.risk
		entry.Reason = rej.reason
		entry.Flags = audit.ComplianceFlags{PHITouched: rej.phi}
	}
	g.ledger.Record(ctx, entry)
}

func (g *Guard) isPublic(path string) bool {
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func clientIPOf(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
