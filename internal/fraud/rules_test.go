package fraud

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRulesEmptyPathReturnsDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	require.Equal(t, DefaultRules(), rules)
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: amount-ladder
    name: transaction amount
    type: amount
    weight: 0.5
    thresholds:
      low: 1000
      medium: 5000
      high: 20000
      critical: 50000
    enabled: true
  - id: provider-reputation
    name: provider risk profile
    type: provider
    weight: 0.5
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, RuleAmount, rules[0].Type)
	require.Equal(t, 0.5, rules[0].Weight)
	require.Equal(t, float64(50000), rules[0].Thresholds.Critical)
}

func TestLoadRulesRejectsBadWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: amount-ladder
    type: amount
    weight: 1.5
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadRules(path)
	require.Error(t, err)
}

func TestLoadRulesRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o600))

	_, err := LoadRules(path)
	require.Error(t, err)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestThresholdLadder(t *testing.T) {
	th := Thresholds{Low: 10, Medium: 20, High: 30, Critical: 40}
	require.Equal(t, float64(5), th.Ladder(9))
	require.Equal(t, float64(30), th.Ladder(10))
	require.Equal(t, float64(55), th.Ladder(25))
	require.Equal(t, float64(80), th.Ladder(30))
	require.Equal(t, float64(100), th.Ladder(45))
}
