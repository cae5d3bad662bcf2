package fraud

import (
	"sync"
	"time"
)

const (
	// unknownProviderRisk is the provider-rule score applied when no profile
	// exists. Unknown providers are deliberately treated as risky.
	unknownProviderRisk = 85

	// incidentDecay controls the exponential accumulation of the fraud
	// incident rate: each scored transaction pulls the rate toward 0 or 1.
	incidentDecay = 0.85
)

// ProviderProfile is the cross-call state behind the provider rule. The
// incident rate accumulates exponentially so recent behavior dominates.
type ProviderProfile struct {
	ProviderID   string    `json:"provider_id"`
	Scored       int       `json:"scored"`
	Incidents    int       `json:"incidents"`
	IncidentRate float64   `json:"incident_rate"`
	RiskScore    float64   `json:"risk_score"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileStore holds provider risk profiles. Every scored transaction feeds
// back into the profile, which future provider-rule evaluations read.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*ProviderProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*ProviderProfile)}
}

// RiskFor returns the provider-rule score for a provider. Unknown providers
// default to risky rather than clean.
func (s *ProfileStore) RiskFor(providerID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[providerID]
	if !ok {
		return unknownProviderRisk
	}
	return p.RiskScore
}

// Profile returns a copy of the provider's profile.
func (s *ProfileStore) Profile(providerID string) (ProviderProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[providerID]
	if !ok {
		return ProviderProfile{}, false
	}
	return *p, true
}

// Update folds one scored transaction into the provider's profile. A high
// or critical verdict counts as a fraud incident.
func (s *ProfileStore) Update(providerID string, tier Tier, at time.Time) {
	incident := 0.0
	if tier == TierHigh || tier == TierCritical {
		incident = 1.0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[providerID]
	if !ok {
		// First observation seeds the rate directly so one clean transaction
		// already moves a new provider off the unknown default.
		p = &ProviderProfile{ProviderID: providerID, IncidentRate: incident}
		s.profiles[providerID] = p
	} else {
		p.IncidentRate = p.IncidentRate*incidentDecay + incident*(1-incidentDecay)
	}
	p.Scored++
	if incident > 0 {
		p.Incidents++
	}
	// A provider with no incidents floors at a modest baseline rather than
	// zero, so a long clean streak still leaves room for the other rules.
	p.RiskScore = 10 + p.IncidentRate*90
	p.UpdatedAt = at
}
