package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimitForMatchesInDeclarationOrder(t *testing.T) {
	cfg := Default()

	route, ok := cfg.LimitFor("/auth/login")
	require.True(t, ok)
	require.Equal(t, "login", route.Class)
	require.Equal(t, 5, route.MaxRequests)

	route, ok = cfg.LimitFor("/phi/encrypt")
	require.True(t, ok)
	require.Equal(t, "phi", route.Class)

	route, ok = cfg.LimitFor("/nphies/claims")
	require.True(t, ok)
	require.Equal(t, "phi", route.Class)

	// Everything else falls through to the catch-all.
	route, ok = cfg.LimitFor("/claims")
	require.True(t, ok)
	require.Equal(t, "default", route.Class)
	require.Equal(t, 100, route.MaxRequests)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.Server.RequireHTTPS)
	require.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	require.Equal(t, 24*time.Hour, cfg.RateLimit.BlockTTL)
	require.Equal(t, 10000, cfg.Audit.Capacity)
	require.Equal(t, 30*24*time.Hour, cfg.Keys.RetentionWindow)
	require.Equal(t, 150*time.Millisecond, cfg.Fraud.AssistTimeout)
	require.Equal(t, float64(28), cfg.Fraud.AssistFallback)
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentra.yaml")
	content := `server:
  addr: ":9090"
  require_https: false
session:
  idle_timeout: 10m
geo:
  block: ["ZZ"]
  ranges:
    - cidr: "203.0.113.0/24"
      country: "ZZ"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := Load(path, slog.Default())
	require.NoError(t, err)

	cfg := m.Current()
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.False(t, cfg.Server.RequireHTTPS)
	require.Equal(t, 10*time.Minute, cfg.Session.IdleTimeout)
	require.Equal(t, []string{"ZZ"}, cfg.Geo.Block)
	require.Len(t, cfg.Geo.Ranges, 1)
	require.Equal(t, "203.0.113.0/24", cfg.Geo.Ranges[0].CIDR)

	// Untouched sections keep their defaults.
	require.Equal(t, 10000, cfg.Audit.Capacity)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	m, err := Load("", slog.Default())
	require.NoError(t, err)
	require.Equal(t, ":8080", m.Current().Server.Addr)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), slog.Default())
	require.Error(t, err)
}
