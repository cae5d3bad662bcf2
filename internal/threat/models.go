package threat

import (
	"time"

	id "sentra/pkg/domain"
)

// Type classifies a detected threat.
type Type string

const (
	TypeBruteForce       Type = "brute_force"
	TypeSuspiciousAccess Type = "suspicious_access"
)

// Severity orders threats for alerting and blocking decisions.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityThreat is an immutable detection record; only Mitigated may flip,
// and only through Detector.Mitigate.
type SecurityThreat struct {
	ID        id.ThreatID `json:"id"`
	Type      Type        `json:"type"`
	Severity  Severity    `json:"severity"`
	Timestamp time.Time   `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"`
	SourceIP  string      `json:"source_ip"`
	Mitigated bool        `json:"mitigated"`
}

// Alert is the out-of-band notification payload for a detected threat.
type Alert struct {
	ThreatID  id.ThreatID `json:"threat_id"`
	Type      Type        `json:"type"`
	Severity  Severity    `json:"severity"`
	Timestamp time.Time   `json:"timestamp"`
	SourceIP  string      `json:"source_ip"`
}
