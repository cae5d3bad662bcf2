package fraud

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleType is the closed set of rule variants. Each type has its own
// evaluation function; the scorer dispatches on the type tag.
type RuleType string

const (
	RuleAmount    RuleType = "amount"
	RuleFrequency RuleType = "frequency"
	RuleProvider  RuleType = "provider"
	RulePattern   RuleType = "pattern"
	RuleAI        RuleType = "ai"
)

// Thresholds are the rule-local score ladder boundaries. Their unit depends
// on the rule type: currency for amount, counts for frequency.
type Thresholds struct {
	Low      float64 `yaml:"low" json:"low"`
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Ladder maps a raw observation onto the rule-local score scale.
func (t Thresholds) Ladder(value float64) float64 {
	switch {
	case value >= t.Critical:
		return 100
	case value >= t.High:
		return 80
	case value >= t.Medium:
		return 55
	case value >= t.Low:
		return 30
	default:
		return 5
	}
}

// Rule is one weighted scoring rule. Weights are multiplied against the
// rule-local score in [0,100]; the weighted contributions sum into the final
// score before clamping.
type Rule struct {
	ID         string     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Type       RuleType   `yaml:"type" json:"type"`
	Weight     float64    `yaml:"weight" json:"weight"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Enabled    bool       `yaml:"enabled" json:"enabled"`
}

// DefaultRules returns the baseline rule set, tuned for SAR-denominated
// claims volumes.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "amount-ladder",
			Name:       "transaction amount",
			Type:       RuleAmount,
			Weight:     0.35,
			Thresholds: Thresholds{Low: 5000, Medium: 20000, High: 60000, Critical: 120000},
			Enabled:    true,
		},
		{
			ID:         "frequency-24h",
			Name:       "24h repeat submissions",
			Type:       RuleFrequency,
			Weight:     0.20,
			Thresholds: Thresholds{Low: 3, Medium: 5, High: 8, Critical: 12},
			Enabled:    true,
		},
		{
			ID:         "provider-reputation",
			Name:       "provider risk profile",
			Type:       RuleProvider,
			Weight:     0.25,
			Enabled:    true,
		},
		{
			ID:         "pattern-heuristics",
			Name:       "timing and service patterns",
			Type:       RulePattern,
			Weight:     0.20,
			Enabled:    true,
		},
		{
			ID:      "ai-assist",
			Name:    "assist signal",
			Type:    RuleAI,
			Weight:  0.25,
			Enabled: true,
		},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a rule set from a YAML file. An empty path returns the
// defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}
	for i, rule := range f.Rules {
		if rule.ID == "" || rule.Type == "" {
			return nil, fmt.Errorf("rules file %s: rule %d missing id or type", path, i)
		}
		if rule.Weight < 0 || rule.Weight > 1 {
			return nil, fmt.Errorf("rules file %s: rule %q weight out of range", path, rule.ID)
		}
	}
	return f.Rules, nil
}
