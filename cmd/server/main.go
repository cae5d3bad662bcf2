// Command server wires the enforcement engine: configuration, stores,
// ledger, detector, guard, and the HTTP surface, with every background task
// running under one errgroup cancelled on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sentra/internal/audit"
	audithandler "sentra/internal/audit/handler"
	auditmemory "sentra/internal/audit/store/memory"
	auditpostgres "sentra/internal/audit/store/postgres"
	"sentra/internal/fraud"
	fraudhandler "sentra/internal/fraud/handler"
	"sentra/internal/guard"
	"sentra/internal/keyvault"
	"sentra/internal/phi"
	phihandler "sentra/internal/phi/handler"
	"sentra/internal/platform/config"
	"sentra/internal/platform/httpserver"
	"sentra/internal/platform/logger"
	"sentra/internal/platform/metrics"
	platformredis "sentra/internal/platform/redis"
	"sentra/internal/ratelimit"
	ratelimithandler "sentra/internal/ratelimit/handler"
	"sentra/internal/session"
	sessionhandler "sentra/internal/session/handler"
	"sentra/internal/threat"
	"sentra/internal/threat/alert"
	threathandler "sentra/internal/threat/handler"
	httptransport "sentra/internal/transport/http"
)

func main() {
	log := logger.New()

	manager, err := config.Load(os.Getenv("SENTRA_CONFIG"), log)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}
	cfg := manager.Current()
	m := metrics.New()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit ledger: Postgres when configured, otherwise the capped ring.
	var store audit.Store
	if cfg.Audit.PostgresURL != "" {
		pg, err := auditpostgres.Connect(rootCtx, cfg.Audit.PostgresURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		store = auditmemory.New(cfg.Audit.Capacity, auditmemory.WithEvictHook(func(n int) {
			m.AuditEvicted.Add(float64(n))
		}))
	}
	ledger := audit.NewLedger(store, 1024,
		audit.WithLogger(log),
		audit.WithAppendHook(m.AuditAppended.Inc),
		audit.WithDropHook(m.AuditDropped.Inc),
		audit.WithSubscriberDropHook(m.AuditFanoutLost.Inc),
	)
	threatStream := ledger.Subscribe(256)

	// Key vault and PHI cipher.
	vault, err := keyvault.New(cfg.Keys.RetentionWindow,
		keyvault.WithLogger(log),
		keyvault.WithRotationHook(func(info keyvault.KeyInfo) {
			m.KeyRotations.Inc()
			ledger.Record(context.Background(), audit.Entry{
				Action:    audit.ActionKeyRotated,
				Outcome:   audit.OutcomeSuccess,
				SourceIP:  "internal",
				Resource:  "key:" + info.ID.String(),
				RiskLevel: audit.RiskLow,
				Flags:     audit.ComplianceFlags{HIPAAOk: true, NPHIESOk: true, Authorized: true},
			})
		}),
		keyvault.WithDestroyHook(func(keyvault.KeyInfo) { m.KeysDestroyed.Inc() }),
	)
	if err != nil {
		log.Error("key vault init failed", "error", err)
		os.Exit(1)
	}
	policy := phi.NewPolicy()
	cipher := phi.NewCipher(vault, policy, ledger,
		phi.WithLogger(log),
		phi.WithDenyHook(m.PolicyDenials.Inc),
	)

	// Optional Redis; memory stores otherwise.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}

	var sessionStore session.Store
	var windowStore ratelimit.WindowStore
	var blocklist ratelimit.Blocklist
	var memWindows *ratelimit.InMemoryWindowStore
	var memBlocklist *ratelimit.InMemoryBlocklist
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient.Client, cfg.Session.IdleTimeout)
		windowStore = ratelimit.NewRedisWindowStore(redisClient.Client)
		blocklist = ratelimit.NewRedisBlocklist(redisClient.Client)
	} else {
		sessionStore = session.NewInMemoryStore()
		memWindows = ratelimit.NewInMemoryWindowStore()
		windowStore = memWindows
		memBlocklist = ratelimit.NewInMemoryBlocklist()
		blocklist = memBlocklist
	}

	registry := session.NewRegistry(sessionStore, ledger,
		session.WithLogger(log),
		session.WithIdleTimeout(cfg.Session.IdleTimeout),
		session.WithActiveHook(func(delta int) { m.SessionsActive.Add(float64(delta)) }),
	)

	limiter := ratelimit.NewLimiter(windowStore, blocklist,
		func(path string) (config.RouteLimit, bool) { return manager.Current().LimitFor(path) },
		ledger,
		ratelimit.WithLogger(log),
		ratelimit.WithBlockTTL(cfg.RateLimit.BlockTTL),
		ratelimit.WithLimitedHook(m.RateLimitBlocks.Inc),
		ratelimit.WithHardBlockHook(m.HardBlocks.Inc),
	)

	// Out-of-band alerts when Kafka is configured.
	var alerter threat.Alerter
	var publisher *alert.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = alert.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, 256,
			alert.WithLogger(log),
		)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		alerter = publisher
	}

	detectorOpts := []threat.Option{
		threat.WithLogger(log),
		threat.WithBlocker(blockerAdapter{blocklist: blocklist, logger: log}, cfg.RateLimit.BlockTTL),
		threat.WithDetectHook(func(t threat.Type) {
			m.ThreatsDetected.WithLabelValues(string(t)).Inc()
		}),
	}
	if alerter != nil {
		detectorOpts = append(detectorOpts, threat.WithAlerter(alerter))
	}
	detector := threat.NewDetector(ledger, detectorOpts...)

	// Fraud scorer with hot-reloadable rules.
	rules, err := fraud.LoadRules(cfg.Fraud.RulesFile)
	if err != nil {
		log.Error("fraud rules load failed", "error", err)
		os.Exit(1)
	}
	scorer := fraud.NewScorer(ledger,
		fraud.WithLogger(log),
		fraud.WithRules(rules),
		fraud.WithAssist(nil, cfg.Fraud.AssistTimeout, cfg.Fraud.AssistFallback),
		fraud.WithScoredHook(func(tier fraud.Tier) {
			m.FraudScored.WithLabelValues(string(tier)).Inc()
		}),
		fraud.WithDegradedHook(m.AssistDegraded.Inc),
	)
	manager.OnReload(func(next *config.Config) {
		reloaded, err := fraud.LoadRules(next.Fraud.RulesFile)
		if err != nil {
			log.Error("fraud rules reload failed, keeping previous set", "error", err)
			return
		}
		scorer.SetRules(reloaded)
	})

	geo := guard.NewStaticGeoResolver()
	for _, r := range cfg.Geo.Ranges {
		if err := geo.AddRange(r.CIDR, r.Country); err != nil {
			log.Error("invalid geo range", "cidr", r.CIDR, "error", err)
			os.Exit(1)
		}
	}

	if cfg.Server.MFASigningKey == "" {
		log.Warn("mfa signing key unset, sensitive-route assertions will all be rejected")
	}
	gd := guard.New(manager.Current, limiter, registry, ledger,
		guard.NewMFAVerifier(cfg.Server.MFASigningKey),
		guard.WithLogger(log),
		guard.WithGeoResolver(geo),
		guard.WithPublicPrefixes("/sessions", "/audit/events"),
		guard.WithDecisionHook(func(check string, allowed bool) {
			result := "blocked"
			if allowed {
				result = "allowed"
			}
			m.GuardDecisions.WithLabelValues(check, result).Inc()
		}),
		guard.WithLatencyHook(func(d time.Duration) { m.GuardLatency.Observe(d.Seconds()) }),
	)

	health := map[string]func(ctx context.Context) error{}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}
	router := httptransport.NewRouter(httptransport.Deps{
		Logger: log,
		Guard:  gd.Middleware,
		Handlers: []httptransport.Registrar{
			audithandler.New(log, ledger),
			sessionhandler.New(log, registry),
			threathandler.New(log, detector),
			ratelimithandler.New(log, limiter),
			phihandler.New(log, cipher, policy),
			fraudhandler.New(log, scorer),
		},
		Health: health,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error { return ledger.Run(ctx) })
	g.Go(func() error { return detector.Run(ctx, threatStream) })
	g.Go(func() error { return vault.RunRotation(ctx, cfg.Keys.RotationInterval) })
	g.Go(func() error { return registry.RunSweep(ctx, cfg.Session.SweepInterval) })
	if memWindows != nil {
		g.Go(func() error { return memWindows.RunCleanup(ctx, cfg.RateLimit.CleanupInterval) })
	}
	if memBlocklist != nil {
		g.Go(func() error { return memBlocklist.RunExpiry(ctx, cfg.RateLimit.BlockTTL) })
	}
	if publisher != nil {
		g.Go(func() error { return publisher.Run(ctx) })
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// blockerAdapter bridges the detector's fire-and-forget block call onto the
// blocklist's context-aware interface.
type blockerAdapter struct {
	blocklist ratelimit.Blocklist
	logger    *slog.Logger
}

func (a blockerAdapter) Block(ip string, ttl time.Duration, reason string) {
	if err := a.blocklist.Block(context.Background(), ip, ttl, reason); err != nil {
		a.logger.Error("threat block failed", "error", err)
	}
}
