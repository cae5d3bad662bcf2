package phi

import (
	"sync"
	"time"

	id "sentra/pkg/domain"
	dErrors "sentra/pkg/domain-errors"
)

// AccessRule describes what one actor may do with PHI. HourFrom/HourTo bound
// the permitted time-of-day window (UTC, half-open; 0/24 means always).
// DailyCap bounds total encrypt+decrypt calls per UTC day; zero means
// unlimited.
type AccessRule struct {
	AllowedTypes []DataType
	HourFrom     int
	HourTo       int
	DailyCap     int
}

func (r AccessRule) allows(dataType DataType) bool {
	for _, t := range r.AllowedTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

// Policy gates every cipher operation. Unknown actors are denied; there is
// no fallback to an open default.
type Policy struct {
	mu    sync.Mutex
	rules map[id.ActorID]AccessRule
	usage map[id.ActorID]*dailyUsage
}

type dailyUsage struct {
	day   time.Time
	count int
}

func NewPolicy() *Policy {
	return &Policy{
		rules: make(map[id.ActorID]AccessRule),
		usage: make(map[id.ActorID]*dailyUsage),
	}
}

// Grant installs or replaces the rule for an actor.
func (p *Policy) Grant(actorID id.ActorID, rule AccessRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules[actorID] = rule
}

// Revoke removes an actor's rule; subsequent authorizations fail closed.
func (p *Policy) Revoke(actorID id.ActorID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rules, actorID)
}

// Authorize checks the request against the actor's rule and, on success,
// consumes one unit of the daily cap. The check and the consume happen under
// one lock so concurrent calls cannot overshoot the cap.
func (p *Policy) Authorize(req AccessRequest, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rule, ok := p.rules[req.ActorID]
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorizedPHIAccess, "actor not permitted")
	}
	if !rule.allows(req.DataType) {
		return dErrors.New(dErrors.CodeUnauthorizedPHIAccess, "data type not permitted")
	}
	if rule.HourFrom != 0 || rule.HourTo != 0 {
		hour := now.UTC().Hour()
		if hour < rule.HourFrom || hour >= rule.HourTo {
			return dErrors.New(dErrors.CodeUnauthorizedPHIAccess, "outside permitted access window")
		}
	}
	if rule.DailyCap > 0 {
		day := now.UTC().Truncate(24 * time.Hour)
		u := p.usage[req.ActorID]
		if u == nil || !u.day.Equal(day) {
			u = &dailyUsage{day: day}
			p.usage[req.ActorID] = u
		}
		if u.count >= rule.DailyCap {
			return dErrors.New(dErrors.CodeUnauthorizedPHIAccess, "daily access cap reached")
		}
		u.count++
	}
	return nil
}
