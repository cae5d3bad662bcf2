package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the engine.
// Subsystem-specific instruments live next to their subsystem; this type
// covers the request guard and ledger counters exposed on /metrics.
type Metrics struct {
	GuardDecisions   *prometheus.CounterVec
	AuditAppended    prometheus.Counter
	AuditDropped     prometheus.Counter
	AuditEvicted     prometheus.Counter
	AuditFanoutLost  prometheus.Counter
	ThreatsDetected  *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	RateLimitBlocks  prometheus.Counter
	HardBlocks       prometheus.Counter
	FraudScored      *prometheus.CounterVec
	GuardLatency     prometheus.Histogram
	AssistDegraded   prometheus.Counter
	KeyRotations     prometheus.Counter
	KeysDestroyed    prometheus.Counter
	PolicyDenials    prometheus.Counter
}

// New creates and registers all engine metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		GuardDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_guard_decisions_total",
			Help: "Guard chain outcomes by terminal check and result.",
		}, []string{"check", "result"}),
		AuditAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_entries_total",
			Help: "Audit entries appended to the ledger.",
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_dropped_total",
			Help: "Audit entries dropped due to a full ledger inbox.",
		}),
		AuditEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_evicted_total",
			Help: "Oldest audit entries evicted past the in-memory cap.",
		}),
		AuditFanoutLost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_fanout_lost_total",
			Help: "Persisted entries not delivered to a lagging subscriber.",
		}),
		ThreatsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_threats_detected_total",
			Help: "Security threats raised by type.",
		}, []string{"type"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sentra_sessions_active",
			Help: "Sessions currently registered.",
		}),
		RateLimitBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_rate_limit_blocks_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		HardBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_hard_blocks_total",
			Help: "IPs escalated to the hard blocklist.",
		}),
		FraudScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_fraud_scored_total",
			Help: "Fraud scoring outcomes by risk tier.",
		}, []string{"tier"}),
		GuardLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentra_guard_latency_seconds",
			Help:    "Time spent in the guard check chain.",
			Buckets: prometheus.DefBuckets,
		}),
		AssistDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_fraud_assist_degraded_total",
			Help: "Fraud scorings that fell back to the conservative assist default.",
		}),
		KeyRotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_key_rotations_total",
			Help: "Encryption key rotations performed.",
		}),
		KeysDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_keys_destroyed_total",
			Help: "Superseded keys destroyed after the retention window.",
		}),
		PolicyDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_phi_policy_denials_total",
			Help: "PHI access attempts denied by policy.",
		}),
	}
}
