package fraud

import "time"

// PaymentContext is the input document scored for fraud risk. It is owned by
// the payment flow; the scorer only reads it.
type PaymentContext struct {
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	ProviderID  string    `json:"provider_id"`
	PatientID   string    `json:"patient_id"`
	ServiceCode string    `json:"service_code"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	Specialty   string    `json:"specialty,omitempty"`
}

// Tier buckets a continuous risk score.
type Tier string

const (
	TierVeryLow  Tier = "very_low"
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// TierFor maps a clamped score to its tier.
func TierFor(score float64) Tier {
	switch {
	case score < 20:
		return TierVeryLow
	case score < 40:
		return TierLow
	case score < 60:
		return TierMedium
	case score < 80:
		return TierHigh
	default:
		return TierCritical
	}
}

// FraudResult is the scorer's verdict.
type FraudResult struct {
	RiskScore       float64   `json:"risk_score"`
	RiskTier        Tier      `json:"risk_tier"`
	TriggeredRules  []string  `json:"triggered_rules"`
	Recommendations []string  `json:"recommendations"`
	NextActions     []string  `json:"next_actions"`
	AssistInsight   string    `json:"assist_insight,omitempty"`
	AssistDegraded  bool      `json:"assist_degraded"`
	ScoredAt        time.Time `json:"scored_at"`
}

// ScoredTransaction is the retained trace of one scoring call, feeding the
// periodic report.
type ScoredTransaction struct {
	ProviderID string    `json:"provider_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	RiskScore  float64   `json:"risk_score"`
	RiskTier   Tier      `json:"risk_tier"`
	Timestamp  time.Time `json:"timestamp"`
}

// Report aggregates scored transactions over a time range.
type Report struct {
	From             time.Time          `json:"from"`
	To               time.Time          `json:"to"`
	TransactionCount int                `json:"transaction_count"`
	TotalVolume      float64            `json:"total_volume"`
	FlaggedCount     int                `json:"flagged_count"`
	FraudRate        float64            `json:"fraud_rate"`
	TierCounts       map[Tier]int       `json:"tier_counts"`
	TopRiskProviders []ProviderRiskRank `json:"top_risk_providers"`
}

// ProviderRiskRank is one row of the report's provider ranking.
type ProviderRiskRank struct {
	ProviderID string  `json:"provider_id"`
	AvgScore   float64 `json:"avg_score"`
	Flagged    int     `json:"flagged"`
	Scored     int     `json:"scored"`
}
