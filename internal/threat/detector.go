// Package threat watches the audit stream for attack patterns. The detector
// consumes persisted ledger entries in append order, so failure counting per
// actor or source IP is monotonic without touching the request path.
package threat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sentra/internal/audit"
	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/privacy"
)

const (
	// DefaultFailureThreshold is the consecutive-failure count that trips a
	// brute-force detection.
	DefaultFailureThreshold = 5
	// DefaultWindow is the rolling period failures must fall within.
	DefaultWindow = 5 * time.Minute
)

// Alerter delivers out-of-band notifications. Implementations must not
// block; a slow sink drops alerts rather than stalling detection.
type Alerter interface {
	Publish(alert Alert)
}

// Blocker marks a source IP for rejection at the guard edge.
type Blocker interface {
	Block(ip string, ttl time.Duration, reason string)
}

// Recorder writes detections back to the ledger.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type failureCounter struct {
	count int
	first time.Time
}

type Detector struct {
	mu       sync.Mutex
	counters map[string]*failureCounter
	threats  map[id.ThreatID]*SecurityThreat
	order    []id.ThreatID

	threshold int
	window    time.Duration
	blockTTL  time.Duration

	alerter Alerter
	blocker Blocker
	ledger  Recorder
	logger  *slog.Logger

	onDetect func(threatType Type)
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

func WithAlerter(alerter Alerter) Option {
	return func(d *Detector) { d.alerter = alerter }
}

func WithBlocker(blocker Blocker, ttl time.Duration) Option {
	return func(d *Detector) {
		d.blocker = blocker
		d.blockTTL = ttl
	}
}

// WithThreshold overrides the consecutive-failure trip point and window.
func WithThreshold(threshold int, window time.Duration) Option {
	return func(d *Detector) {
		d.threshold = threshold
		d.window = window
	}
}

// WithDetectHook registers a callback invoked per detection. Used for metrics.
func WithDetectHook(fn func(threatType Type)) Option {
	return func(d *Detector) { d.onDetect = fn }
}

func NewDetector(ledger Recorder, opts ...Option) *Detector {
	d := &Detector{
		counters:  make(map[string]*failureCounter),
		threats:   make(map[id.ThreatID]*SecurityThreat),
		threshold: DefaultFailureThreshold,
		window:    DefaultWindow,
		blockTTL:  24 * time.Hour,
		ledger:    ledger,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes the entry stream until ctx is done or the channel closes.
func (d *Detector) Run(ctx context.Context, entries <-chan audit.Entry) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			d.Observe(ctx, entry)
		}
	}
}

// Observe applies one ledger entry to the detection state.
func (d *Detector) Observe(ctx context.Context, entry audit.Entry) {
	switch entry.Action {
	case audit.ActionThreatDetected, audit.ActionThreatMitigated, audit.ActionLedgerDegraded:
		// Self-emitted entries must not feed back into detection.
		return
	}

	if entry.Flags.PHITouched && entry.RiskLevel == audit.RiskCritical {
		d.raise(ctx, TypeSuspiciousAccess, SeverityCritical, entry)
	}

	key := counterKey(entry)
	if key == "" {
		return
	}
	switch entry.Outcome {
	case audit.OutcomeSuccess:
		d.mu.Lock()
		delete(d.counters, key)
		d.mu.Unlock()
	case audit.OutcomeFailure:
		if d.countFailure(key, entry.Timestamp) {
			d.raise(ctx, TypeBruteForce, SeverityHigh, entry)
		}
	}
}

// countFailure reports whether this failure tripped the threshold. The
// counter resets when the rolling window elapses or after a trip.
func (d *Detector) countFailure(key string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.counters[key]
	if c == nil || at.Sub(c.first) > d.window {
		c = &failureCounter{first: at}
		d.counters[key] = c
	}
	c.count++
	if c.count >= d.threshold {
		delete(d.counters, key)
		return true
	}
	return false
}

func (d *Detector) raise(ctx context.Context, threatType Type, severity Severity, entry audit.Entry) {
	t := &SecurityThreat{
		ID:        id.NewThreatID(),
		Type:      threatType,
		Severity:  severity,
		Timestamp: entry.Timestamp,
		ActorID:   entry.ActorID,
		SourceIP:  entry.SourceIP,
	}
	d.mu.Lock()
	d.threats[t.ID] = t
	d.order = append(d.order, t.ID)
	d.mu.Unlock()

	d.logger.Warn("security threat detected",
		"threat_id", t.ID,
		"type", t.Type,
		"severity", t.Severity,
		"source_ip", privacy.AnonymizeIP(t.SourceIP),
	)
	if d.onDetect != nil {
		d.onDetect(threatType)
	}

	if d.blocker != nil && (severity == SeverityHigh || severity == SeverityCritical) && t.SourceIP != "" {
		d.blocker.Block(t.SourceIP, d.blockTTL, string(threatType))
	}
	if d.alerter != nil && severity == SeverityCritical {
		d.alerter.Publish(Alert{
			ThreatID:  t.ID,
			Type:      t.Type,
			Severity:  t.Severity,
			Timestamp: t.Timestamp,
			SourceIP:  t.SourceIP,
		})
	}

	d.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionThreatDetected,
		Outcome:   audit.OutcomeWarning,
		ActorID:   entry.ActorID,
		SourceIP:  entry.SourceIP,
		RiskLevel: riskFor(severity),
		Reason:    string(threatType),
	})
}

// Mitigate flips the mitigated flag on a recorded threat.
func (d *Detector) Mitigate(ctx context.Context, threatID id.ThreatID) error {
	d.mu.Lock()
	t, ok := d.threats[threatID]
	if ok {
		t.Mitigated = true
	}
	d.mu.Unlock()
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "threat not found")
	}
	d.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionThreatMitigated,
		Outcome:   audit.OutcomeSuccess,
		SourceIP:  t.SourceIP,
		RiskLevel: audit.RiskLow,
		Reason:    string(t.Type),
	})
	return nil
}

// Threats lists detections newest-first, capped by limit (0 means all).
func (d *Detector) Threats(limit int) []SecurityThreat {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 || limit > len(d.order) {
		limit = len(d.order)
	}
	out := make([]SecurityThreat, 0, limit)
	for i := len(d.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *d.threats[d.order[i]])
	}
	return out
}

func counterKey(entry audit.Entry) string {
	if entry.ActorID != "" {
		return "actor:" + entry.ActorID
	}
	if entry.SourceIP != "" {
		return "ip:" + entry.SourceIP
	}
	return ""
}

func riskFor(severity Severity) audit.RiskLevel {
	switch severity {
	case SeverityCritical:
		return audit.RiskCritical
	case SeverityHigh:
		return audit.RiskHigh
	case SeverityMedium:
		return audit.RiskMedium
	default:
		return audit.RiskLow
	}
}
