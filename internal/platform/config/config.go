// Package config loads the engine configuration from a YAML file with
// environment overrides, and supports hot reload so operators can tune
// limits, geo lists, and fraud weights without restarting the guard.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RouteLimit is one row of the per-route rate limit table.
type RouteLimit struct {
	Pattern     string        `mapstructure:"pattern"`
	Class       string        `mapstructure:"class"`
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequireHTTPS   bool          `mapstructure:"require_https"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MFASigningKey  string        `mapstructure:"mfa_signing_key"`
}

// KeyConfig controls vault rotation and retention.
type KeyConfig struct {
	RotationInterval time.Duration `mapstructure:"rotation_interval"`
	RetentionWindow  time.Duration `mapstructure:"retention_window"`
}

// SessionConfig controls session validity and sweeping.
type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RateLimitConfig holds the route table and escalation policy.
type RateLimitConfig struct {
	Routes          []RouteLimit  `mapstructure:"routes"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	BlockTTL        time.Duration `mapstructure:"block_ttl"`
}

// GeoConfig holds ISO-3166-1 alpha-2 country allow/block lists. An empty
// allow list means all countries not explicitly blocked are permitted.
// Ranges feed the static IP-to-country resolver; deployments with a real
// GeoIP provider leave them empty.
type GeoConfig struct {
	Allow  []string   `mapstructure:"allow"`
	Block  []string   `mapstructure:"block"`
	Ranges []GeoRange `mapstructure:"ranges"`
}

// GeoRange maps a CIDR to a country code.
type GeoRange struct {
	CIDR    string `mapstructure:"cidr"`
	Country string `mapstructure:"country"`
}

// AuditConfig controls the ledger backends.
type AuditConfig struct {
	Capacity    int    `mapstructure:"capacity"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// FraudConfig controls the scorer.
type FraudConfig struct {
	RulesFile      string        `mapstructure:"rules_file"`
	AssistTimeout  time.Duration `mapstructure:"assist_timeout"`
	AssistFallback float64       `mapstructure:"assist_fallback"`
}

// RedisConfig configures the optional Redis backends.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig configures the out-of-band threat alert channel.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AlertTopic string   `mapstructure:"alert_topic"`
}

// Config is an immutable snapshot. Never mutate a snapshot in place; the
// Manager swaps whole snapshots on reload.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Keys      KeyConfig       `mapstructure:"keys"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Fraud     FraudConfig     `mapstructure:"fraud"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// Default returns the baseline configuration applied underneath any file or
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequireHTTPS:   true,
			RequestTimeout: 500 * time.Millisecond,
		},
		Keys: KeyConfig{
			RotationInterval: 24 * time.Hour,
			RetentionWindow:  30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Routes: []RouteLimit{
				{Pattern: "/auth/login", Class: "login", Window: 5 * time.Minute, MaxRequests: 5},
				{Pattern: "/phi/", Class: "phi", Window: time.Minute, MaxRequests: 20},
				{Pattern: "/nphies/", Class: "phi", Window: time.Minute, MaxRequests: 20},
				{Pattern: "/", Class: "default", Window: time.Minute, MaxRequests: 100},
			},
			CleanupInterval: time.Minute,
			BlockTTL:        24 * time.Hour,
		},
		Audit: AuditConfig{Capacity: 10000},
		Fraud: FraudConfig{
			AssistTimeout:  150 * time.Millisecond,
			AssistFallback: 28,
		},
	}
}

// LimitFor returns the first route row whose pattern prefixes the path.
// Rows are matched in declaration order so specific patterns must precede
// the catch-all.
func (c *Config) LimitFor(path string) (RouteLimit, bool) {
	for _, route := range c.RateLimit.Routes {
		if strings.HasPrefix(path, route.Pattern) {
			return route, true
		}
	}
	return RouteLimit{}, false
}

// Manager owns the current snapshot and the reload loop.
type Manager struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	logger  *slog.Logger

	mu        sync.Mutex
	listeners []func(*Config)
}

// Load reads the configuration file (optional) and environment, returning a
// Manager holding the initial snapshot. Environment variables use the
// SENTRA_ prefix with underscores (SENTRA_SERVER_ADDR, SENTRA_REDIS_URL...).
func Load(path string, logger *slog.Logger) (*Manager, error) {
	v := viper.New()
	v.SetEnvPrefix("sentra")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	m := &Manager{v: v, logger: logger}
	cfg, err := m.unmarshal()
	if err != nil {
		return nil, err
	}
	m.current.Store(cfg)

	if path != "" {
		v.OnConfigChange(func(_ fsnotify.Event) {
			next, err := m.unmarshal()
			if err != nil {
				logger.Error("config reload failed, keeping previous snapshot", "error", err)
				return
			}
			m.current.Store(next)
			logger.Info("config reloaded", "path", path)
			m.notify(next)
		})
		v.WatchConfig()
	}

	return m, nil
}

func (m *Manager) unmarshal() (*Config, error) {
	cfg := Default()
	if err := m.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Current returns the active snapshot. Callers must not retain it across
// requests if they want to observe reloads.
func (m *Manager) Current() *Config {
	return m.current.Load()
}

// OnReload registers a callback invoked with each new snapshot. Callbacks
// run on the watcher goroutine and must not block.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notify(cfg *Config) {
	m.mu.Lock()
	listeners := append([]func(*Config){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}
