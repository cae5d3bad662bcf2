package audit

import (
	"time"

	id "sentra/pkg/domain"
)

// Outcome classifies how an audited operation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeWarning Outcome = "warning"
)

// RiskLevel tags an entry for threat detection and query filtering.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ComplianceFlags record the regulatory posture of the audited operation.
type ComplianceFlags struct {
	HIPAAOk    bool `json:"hipaa_ok"`
	NPHIESOk   bool `json:"nphies_ok"`
	PHITouched bool `json:"phi_touched"`
	Authorized bool `json:"authorized"`
}

// Action names for entries emitted by the engine itself. Externally-sourced
// entries (POST /audit/events) may carry actions outside this set.
type Action string

const (
	// Guard chain
	ActionRequestAllowed   Action = "request_allowed"
	ActionRequestBlocked   Action = "request_blocked"
	ActionRateLimited      Action = "rate_limited"
	ActionIPHardBlocked    Action = "ip_hard_blocked"
	ActionPayloadRejected  Action = "payload_rejected"
	ActionGeoBlocked       Action = "geo_blocked"
	ActionMFARejected      Action = "mfa_rejected"
	ActionHTTPSRejected    Action = "https_rejected"
	ActionComplianceFailed Action = "compliance_failed"

	// Sessions
	ActionSessionCreated    Action = "session_created"
	ActionSessionExpired    Action = "session_expired"
	ActionSessionTerminated Action = "session_terminated"
	ActionAuthFailed        Action = "auth_failed"

	// PHI / crypto
	ActionPHIEncrypted    Action = "phi_encrypted"
	ActionPHIDecrypted    Action = "phi_decrypted"
	ActionPHIDenied       Action = "phi_access_denied"
	ActionIntegrityFailed Action = "phi_integrity_failed"
	ActionKeyRotated      Action = "key_rotated"

	// Threats
	ActionThreatDetected  Action = "threat_detected"
	ActionThreatMitigated Action = "threat_mitigated"

	// Fraud
	ActionFraudScored Action = "fraud_scored"

	// Ledger self-auditing: failures of the sink are audited at a lower
	// tier, never propagated as request failures.
	ActionLedgerDegraded Action = "ledger_degraded"
)

// Entry is one immutable, append-only ledger record. Application code never
// edits or deletes entries; the only exception is the bounded eviction of
// the oldest entries past the in-memory hard cap, which is an explicit
// capacity decision surfaced to operators via a metric.
type Entry struct {
	ID        id.EntryID      `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Action    Action          `json:"action"`
	Outcome   Outcome         `json:"outcome"`
	ActorID   string          `json:"actor_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	SourceIP  string          `json:"source_ip"`
	Resource  string          `json:"resource,omitempty"`
	RiskLevel RiskLevel       `json:"risk_level"`
	Flags     ComplianceFlags `json:"compliance_flags"`
	RequestID string          `json:"request_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Filter narrows a ledger query. Zero-valued fields match everything.
type Filter struct {
	ActorID string
	Action  Action
	From    time.Time
	To      time.Time
	Limit   int
}

// Matches reports whether the entry passes the filter (Limit excluded).
func (f Filter) Matches(e Entry) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
