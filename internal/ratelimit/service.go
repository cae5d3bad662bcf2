// Package ratelimit enforces per-(client, route) fixed-window limits and
// escalates repeat offenders to a hard IP block.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sentra/internal/audit"
	"sentra/internal/platform/config"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/privacy"
)

// Recorder writes escalation events to the ledger.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Resolver maps a request path to its route limit row. Reading through a
// resolver instead of a fixed table keeps limits hot-reloadable.
type Resolver func(path string) (config.RouteLimit, bool)

type Limiter struct {
	store     WindowStore
	blocklist Blocklist
	resolve   Resolver
	ledger    Recorder
	logger    *slog.Logger

	blockTTL time.Duration

	// Cumulative violations per (client, route) key. Escalation to a hard
	// block fires at twice the route's request limit.
	vmu        sync.Mutex
	violations map[string]int

	onLimited   func()
	onHardBlock func()
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithBlockTTL(ttl time.Duration) Option {
	return func(l *Limiter) { l.blockTTL = ttl }
}

// WithLimitedHook registers a callback per rejected request.
func WithLimitedHook(fn func()) Option {
	return func(l *Limiter) { l.onLimited = fn }
}

// WithHardBlockHook registers a callback per escalation to a hard block.
func WithHardBlockHook(fn func()) Option {
	return func(l *Limiter) { l.onHardBlock = fn }
}

func NewLimiter(store WindowStore, blocklist Blocklist, resolve Resolver, ledger Recorder, opts ...Option) *Limiter {
	l := &Limiter{
		store:      store,
		blocklist:  blocklist,
		resolve:    resolve,
		ledger:     ledger,
		logger:     slog.Default(),
		blockTTL:   24 * time.Hour,
		violations: make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Blocklist exposes the blocklist for the guard's edge check and the admin
// unblock surface.
func (l *Limiter) Blocklist() Blocklist {
	return l.blocklist
}

// Allow admits or rejects one request for the client on the given path. A
// rejection counts as a violation; accumulating twice the route's limit in
// violations hard-blocks the client IP for the block TTL and writes a
// critical ledger entry.
func (l *Limiter) Allow(ctx context.Context, clientIP, path string) (Result, error) {
	route, ok := l.resolve(path)
	if !ok {
		// No row matches; the catch-all pattern is expected to exist, so an
		// unmatched path passes through unmetered.
		return Result{Allowed: true}, nil
	}

	key := clientIP + "|" + route.Pattern
	result, err := l.store.Allow(ctx, key, route.MaxRequests, route.Window)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "rate window update failed")
	}
	if result.Allowed {
		return result, nil
	}

	if l.onLimited != nil {
		l.onLimited()
	}
	l.recordViolation(ctx, clientIP, key, route)
	return result, dErrors.New(dErrors.CodeRateLimitExceeded, "rate limit exceeded")
}

func (l *Limiter) recordViolation(ctx context.Context, clientIP, key string, route config.RouteLimit) {
	l.vmu.Lock()
	l.violations[key]++
	count := l.violations[key]
	escalate := count >= 2*route.MaxRequests
	if escalate {
		delete(l.violations, key)
	}
	l.vmu.Unlock()

	if !escalate {
		return
	}
	if err := l.blocklist.Block(ctx, clientIP, l.blockTTL, "rate limit escalation"); err != nil {
		l.logger.Error("hard block failed", "error", err)
		return
	}
	if l.onHardBlock != nil {
		l.onHardBlock()
	}
	l.logger.Warn("client escalated to hard block",
		"source_ip", privacy.AnonymizeIP(clientIP),
		"route", route.Pattern,
		"violations", count,
	)
	l.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionIPHardBlocked,
		Outcome:   audit.OutcomeFailure,
		SourceIP:  clientIP,
		Resource:  route.Pattern,
		RiskLevel: audit.RiskCritical,
		Reason:    "repeated rate limit violations",
	})
}

// Unblock clears a hard block ahead of its TTL.
func (l *Limiter) Unblock(ctx context.Context, ip string) error {
	if err := l.blocklist.Unblock(ctx, ip); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "unblock failed")
	}
	l.logger.Info("client unblocked", "source_ip", privacy.AnonymizeIP(ip))
	return nil
}
