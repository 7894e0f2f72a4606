// Package main is the entry point for the threat detection engine.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinel-engine/internal/alerting"
	"sentinel-engine/internal/audit"
	"sentinel-engine/internal/cache"
	"sentinel-engine/internal/config"
	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/engine"
	"sentinel-engine/internal/ingest"
	"sentinel-engine/internal/profile"
	"sentinel-engine/internal/response"
	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/storage"
	"sentinel-engine/internal/strategy"
	"sentinel-engine/internal/threat"
)

func main() {
	// Setup structured logging
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"ring_size", cfg.Engine.RingSize,
		"kafka_topic", cfg.Kafka.Topic,
		"redis_addr", cfg.Redis.Addr,
		"clickhouse_hosts", cfg.ClickHouse.Hosts,
	)

	// Detection rules
	rules := detection.DefaultRules()
	if err := rules.Apply(cfg.Rules); err != nil {
		slog.Error("invalid rule overrides", "error", err)
		os.Exit(1)
	}

	// Cache layer
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Storage layer
	chClient, err := storage.NewClickHouseClient(cfg.ClickHouse)
	if err != nil {
		slog.Error("failed to connect to clickhouse", "error", err)
		os.Exit(1)
	}
	defer chClient.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := chClient.EnsureDatabase(migrateCtx); err != nil {
		migrateCancel()
		slog.Error("failed to ensure database", "error", err)
		os.Exit(1)
	}
	if err := storage.NewMigrator(chClient).Run(migrateCtx); err != nil {
		migrateCancel()
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	migrateCancel()

	activityStore := storage.NewActivityStore(chClient)
	threatStore := storage.NewThreatStore(chClient)

	// Audit log
	auditLog, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		slog.Error("failed to open audit log", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	// Alerting
	notifier := alerting.NewNotifier(
		alerting.NewPubSubChannel(redisClient, cfg.Alerting.PubSubChannel),
		&alerting.LogChannel{},
	)
	if cfg.Alerting.WebhookURL != "" {
		notifier.AddChannel(alerting.NewWebhookChannel("webhook", cfg.Alerting.WebhookURL, cfg.Alerting.WebhookHeaders))
	}

	// Detection strategies
	profiler := profile.NewProfiler(activityStore, redisClient, cfg.Profiler)
	directory := cache.NewDirectory(redisClient)

	strategies := []strategy.Strategy{
		strategy.NewBruteForce(rules.Get(threat.TypeBruteForce), redisClient),
		strategy.NewBehavioralAnomaly(rules.Get(threat.TypeBehavioralAnomaly), profiler),
		strategy.NewPrivilegeEscalation(rules.Get(threat.TypePrivilegeEscalation), directory),
		strategy.NewMaliciousSource(rules.Get(threat.TypeMaliciousSource), redisClient),
	}

	// Response dispatcher
	mitigations := cache.NewMitigations(redisClient)
	dispatcher := response.NewDispatcher(threatStore, auditLog, notifier, mitigations, rules, cfg.Dispatcher)

	// Engine
	validator := schema.NewValidatorWithConfig(schema.ValidatorConfig{
		MaxAge:    cfg.Validation.MaxEventAge,
		MaxFuture: cfg.Validation.MaxFuture,
	})
	det := engine.New(validator, strategies, dispatcher, engine.Config{RingSize: cfg.Engine.RingSize})
	det.UseAggregates(threatStore)

	// Kafka ingestion
	consumer, err := ingest.NewConsumer(cfg.Kafka, det, activityStore)
	if err != nil {
		slog.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	consumer.Start()

	slog.Info("detection engine started", "strategies", len(strategies))

	// Periodic summary for operators
	summaryTicker := time.NewTicker(5 * time.Minute)
	defer summaryTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-summaryTicker.C:
			s := det.Summary(24)
			slog.Info("detection summary",
				"window_detected", s.WindowDetected,
				"stored_by_type", s.StoredByType,
				"high_confidence", s.HighConfidence,
				"auto_responses", s.AutoResponses,
				"total_processed", s.TotalProcessed,
				"total_rejected", s.TotalRejected,
				"strategy_errors", s.StrategyErrors,
			)
		case sig := <-sigCh:
			slog.Info("received shutdown signal", "signal", sig.String())

			if err := consumer.Stop(); err != nil {
				slog.Error("failed to stop consumer", "error", err)
			}

			metrics := consumer.GetMetrics()
			slog.Info("shutdown complete",
				"consumed", metrics.Consumed,
				"detected", metrics.Detected,
				"failures", metrics.Failures,
			)
			return
		}
	}
}
