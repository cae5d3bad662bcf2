// Package fraud scores payment and claim contexts against a weighted rule
// set plus an opaque assist signal, producing an explainable risk verdict.
package fraud

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"sentra/internal/audit"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/requestcontext"
)

const (
	// triggeredFloor is the rule-local score at which a rule counts as
	// triggered for explanation purposes.
	triggeredFloor = 55

	defaultAssistTimeout  = 150 * time.Millisecond
	defaultAssistFallback = 28

	historyCap = 10000
)

// Recorder writes scoring verdicts to the ledger.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Scorer struct {
	rmu   sync.RWMutex
	rules []Rule

	freq     *frequencyWindow
	profiles *ProfileStore

	assist         Assist
	assistTimeout  time.Duration
	assistFallback float64

	hmu     sync.Mutex
	history []ScoredTransaction

	ledger Recorder
	logger *slog.Logger

	onScored   func(tier Tier)
	onDegraded func()
}

type Option func(*Scorer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// WithAssist plugs in the assist collaborator with its sub-deadline and the
// conservative contribution used when it is unavailable.
func WithAssist(assist Assist, timeout time.Duration, fallback float64) Option {
	return func(s *Scorer) {
		s.assist = assist
		if timeout > 0 {
			s.assistTimeout = timeout
		}
		if fallback > 0 {
			s.assistFallback = fallback
		}
	}
}

func WithRules(rules []Rule) Option {
	return func(s *Scorer) { s.rules = rules }
}

// WithScoredHook registers a callback per verdict. Used for metrics.
func WithScoredHook(fn func(tier Tier)) Option {
	return func(s *Scorer) { s.onScored = fn }
}

// WithDegradedHook registers a callback per degraded assist call.
func WithDegradedHook(fn func()) Option {
	return func(s *Scorer) { s.onDegraded = fn }
}

func NewScorer(ledger Recorder, opts ...Option) *Scorer {
	s := &Scorer{
		rules:          DefaultRules(),
		freq:           newFrequencyWindow(24 * time.Hour),
		profiles:       NewProfileStore(),
		assistTimeout:  defaultAssistTimeout,
		assistFallback: defaultAssistFallback,
		ledger:         ledger,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRules swaps the rule set. Used by config hot reload.
func (s *Scorer) SetRules(rules []Rule) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	s.rules = rules
}

// Rules returns a copy of the active rule set.
func (s *Scorer) Rules() []Rule {
	s.rmu.RLock()
	defer s.rmu.RUnlock()
	return append([]Rule{}, s.rules...)
}

// Profiles exposes the provider risk profile table.
func (s *Scorer) Profiles() *ProfileStore {
	return s.profiles
}

// Score evaluates every enabled rule against the payment, sums the weighted
// contributions, clamps into [0,100], and derives the tier and the
// deterministic recommendations. The verdict feeds back into the provider's
// risk profile.
func (s *Scorer) Score(ctx context.Context, payment PaymentContext) (FraudResult, error) {
	if payment.Amount <= 0 {
		return FraudResult{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if payment.ProviderID == "" {
		return FraudResult{}, dErrors.New(dErrors.CodeInvalidInput, "provider id is required")
	}
	if payment.Timestamp.IsZero() {
		payment.Timestamp = requestcontext.Now(ctx)
	}

	rules := s.Rules()

	var (
		total     float64
		triggered []string
		insight   string
		degraded  bool
	)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		var local float64
		switch rule.Type {
		case RuleAmount:
			local = rule.Thresholds.Ladder(payment.Amount)
		case RuleFrequency:
			local = rule.Thresholds.Ladder(float64(s.freq.observe(payment)))
		case RuleProvider:
			local = s.profiles.RiskFor(payment.ProviderID)
		case RulePattern:
			local = patternScore(payment)
		case RuleAI:
			result, ok := s.callAssist(ctx, payment)
			if !ok {
				degraded = true
				local = s.assistFallback
			} else {
				local = clamp(result.Contribution)
				insight = result.Insight
			}
		default:
			continue
		}
		total += local * rule.Weight
		if local >= triggeredFloor {
			triggered = append(triggered, rule.ID)
		}
	}

	score := clamp(total)
	tier := TierFor(score)
	recommendations, nextActions := adviceFor(tier, triggered)

	result := FraudResult{
		RiskScore:       score,
		RiskTier:        tier,
		TriggeredRules:  triggered,
		Recommendations: recommendations,
		NextActions:     nextActions,
		AssistInsight:   insight,
		AssistDegraded:  degraded,
		ScoredAt:        payment.Timestamp,
	}

	s.profiles.Update(payment.ProviderID, tier, payment.Timestamp)
	s.remember(ScoredTransaction{
		ProviderID: payment.ProviderID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		RiskScore:  score,
		RiskTier:   tier,
		Timestamp:  payment.Timestamp,
	})
	if s.onScored != nil {
		s.onScored(tier)
	}
	if degraded && s.onDegraded != nil {
		s.onDegraded()
	}

	s.ledger.Record(ctx, audit.Entry{
		Action:    audit.ActionFraudScored,
		Outcome:   audit.OutcomeSuccess,
		SourceIP:  requestcontext.ClientIP(ctx),
		Resource:  "provider:" + payment.ProviderID,
		RiskLevel: riskFor(tier),
		Flags:     audit.ComplianceFlags{HIPAAOk: true, NPHIESOk: true, Authorized: true},
		Reason:    strings.Join(triggered, ","),
	})
	return result, nil
}

// callAssist runs the collaborator under its own sub-deadline in a separate
// goroutine, so an assist that ignores its context still cannot hold the
// request past the deadline.
func (s *Scorer) callAssist(ctx context.Context, payment PaymentContext) (AssistResult, bool) {
	if s.assist == nil {
		return AssistResult{}, false
	}
	actx, cancel := context.WithTimeout(ctx, s.assistTimeout)
	defer cancel()

	type outcome struct {
		result AssistResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := s.assist.Score(actx, payment)
		ch <- outcome{result: result, err: err}
	}()
	select {
	case <-actx.Done():
		s.logger.Warn("assist deadline missed, using fallback contribution")
		return AssistResult{}, false
	case o := <-ch:
		if o.err != nil {
			s.logger.Warn("assist unavailable, using fallback contribution", "error", o.err)
			return AssistResult{}, false
		}
		return o.result, true
	}
}

func (s *Scorer) remember(tx ScoredTransaction) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, tx)
	if over := len(s.history) - historyCap; over > 0 {
		s.history = append([]ScoredTransaction{}, s.history[over:]...)
	}
}

// patternScore applies the timing and service heuristics: night-time
// submissions, weekend submissions, and a service code outside the
// provider's declared specialty each add risk.
func patternScore(payment PaymentContext) float64 {
	score := 5.0
	hour := payment.Timestamp.Hour()
	if hour < 6 || hour >= 23 {
		score += 35
	}
	switch payment.Timestamp.Weekday() {
	case time.Friday, time.Saturday:
		score += 25
	}
	if specialtyMismatch(payment) {
		score += 30
	}
	return clamp(score)
}

// specialtyMismatch compares the service code's leading segment against the
// declared specialty. Codes follow the "<specialty>-<procedure>" convention.
func specialtyMismatch(payment PaymentContext) bool {
	if payment.Specialty == "" || payment.ServiceCode == "" {
		return false
	}
	segment, _, found := strings.Cut(payment.ServiceCode, "-")
	if !found {
		return false
	}
	return !strings.EqualFold(segment, payment.Specialty)
}

func adviceFor(tier Tier, triggered []string) (recommendations, nextActions []string) {
	switch tier {
	case TierCritical:
		recommendations = append(recommendations, "block transaction", "alert fraud team")
		nextActions = append(nextActions, "hold settlement", "open investigation case")
	case TierHigh:
		recommendations = append(recommendations, "manual review required")
		nextActions = append(nextActions, "queue for review within 24h")
	case TierMedium:
		recommendations = append(recommendations, "enhanced monitoring")
		nextActions = append(nextActions, "flag for pattern tracking")
	default:
		recommendations = append(recommendations, "approve")
		nextActions = append(nextActions, "none")
	}
	for _, ruleID := range triggered {
		switch {
		case strings.HasPrefix(ruleID, "amount"):
			recommendations = append(recommendations, "verify supporting documentation")
		case strings.HasPrefix(ruleID, "frequency"):
			recommendations = append(recommendations, "check for duplicate submissions")
		case strings.HasPrefix(ruleID, "provider"):
			recommendations = append(recommendations, "review provider history")
		case strings.HasPrefix(ruleID, "pattern"):
			recommendations = append(recommendations, "verify service timing")
		}
	}
	return recommendations, nextActions
}

// ReportRange aggregates scored transactions within [from, to].
func (s *Scorer) ReportRange(from, to time.Time) Report {
	s.hmu.Lock()
	transactions := append([]ScoredTransaction{}, s.history...)
	s.hmu.Unlock()

	report := Report{
		From:       from,
		To:         to,
		TierCounts: make(map[Tier]int),
	}
	type providerAgg struct {
		total   float64
		scored  int
		flagged int
	}
	providers := make(map[string]*providerAgg)
	for _, tx := range transactions {
		if tx.Timestamp.Before(from) || tx.Timestamp.After(to) {
			continue
		}
		report.TransactionCount++
		report.TotalVolume += tx.Amount
		report.TierCounts[tx.RiskTier]++
		agg := providers[tx.ProviderID]
		if agg == nil {
			agg = &providerAgg{}
			providers[tx.ProviderID] = agg
		}
		agg.total += tx.RiskScore
		agg.scored++
		if tx.RiskTier == TierHigh || tx.RiskTier == TierCritical {
			report.FlaggedCount++
			agg.flagged++
		}
	}
	if report.TransactionCount > 0 {
		report.FraudRate = float64(report.FlaggedCount) / float64(report.TransactionCount)
	}
	for providerID, agg := range providers {
		report.TopRiskProviders = append(report.TopRiskProviders, ProviderRiskRank{
			ProviderID: providerID,
			AvgScore:   agg.total / float64(agg.scored),
			Flagged:    agg.flagged,
			Scored:     agg.scored,
		})
	}
	sort.Slice(report.TopRiskProviders, func(i, j int) bool {
		return report.TopRiskProviders[i].AvgScore > report.TopRiskProviders[j].AvgScore
	})
	if len(report.TopRiskProviders) > 10 {
		report.TopRiskProviders = report.TopRiskProviders[:10]
	}
	return report
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func riskFor(tier Tier) audit.RiskLevel {
	switch tier {
	case TierCritical:
		return audit.RiskCritical
	case TierHigh:
		return audit.RiskHigh
	case TierMedium:
		return audit.RiskMedium
	default:
		return audit.RiskLow
	}
}
