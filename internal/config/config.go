// Package config handles configuration loading for the detection engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sentinel-engine/internal/audit"
	"sentinel-engine/internal/cache"
	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/ingest"
	"sentinel-engine/internal/profile"
	"sentinel-engine/internal/response"
	"sentinel-engine/internal/storage"
)

// Config holds the complete application configuration.
type Config struct {
	Logging    LoggingConfig        `yaml:"logging"`
	Engine     EngineConfig         `yaml:"engine"`
	Validation ValidationConfig     `yaml:"validation"`
	Profiler   profile.Config       `yaml:"profiler"`
	Dispatcher response.Config      `yaml:"dispatcher"`
	Rules      []detection.Override `yaml:"rules"`
	Redis      cache.Config         `yaml:"redis"`
	ClickHouse storage.Config       `yaml:"clickhouse"`
	Kafka      ingest.Config        `yaml:"kafka"`
	Audit      audit.Config         `yaml:"audit"`
	Alerting   AlertingConfig       `yaml:"alerting"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig holds orchestrator settings.
type EngineConfig struct {
	RingSize int `yaml:"ring_size"`
}

// ValidationConfig holds event validation settings.
type ValidationConfig struct {
	MaxEventAge time.Duration `yaml:"max_event_age"`
	MaxFuture   time.Duration `yaml:"max_future"`
}

// AlertingConfig holds notification channel settings.
type AlertingConfig struct {
	PubSubChannel  string            `yaml:"pubsub_channel"`
	WebhookURL     string            `yaml:"webhook_url"`
	WebhookHeaders map[string]string `yaml:"webhook_headers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			RingSize: 10000,
		},
		Validation: ValidationConfig{
			MaxEventAge: 7 * 24 * time.Hour,
			MaxFuture:   5 * time.Minute,
		},
		Profiler:   profile.DefaultConfig(),
		Dispatcher: response.DefaultConfig(),
		Redis:      cache.DefaultConfig(),
		ClickHouse: storage.DefaultConfig(),
		Kafka:      ingest.DefaultConfig(),
		Audit:      audit.DefaultConfig(),
		Alerting: AlertingConfig{
			PubSubChannel: "alerts:security",
		},
	}
}

// Load loads configuration from a file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("SENTINEL_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("SENTINEL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}

	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Redis.Password = pass
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.ClickHouse.Hosts = []string{host}
	}

	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.ClickHouse.Database = db
	}

	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.ClickHouse.Username = user
	}

	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.ClickHouse.Password = pass
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers, ",")
	}

	if webhook := os.Getenv("SENTINEL_ALERT_WEBHOOK"); webhook != "" {
		c.Alerting.WebhookURL = webhook
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level: %q", c.Logging.Level)
	}

	if c.Engine.RingSize <= 0 {
		return fmt.Errorf("config: ring_size must be positive")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis addr is required")
	}

	if len(c.ClickHouse.Hosts) == 0 {
		return fmt.Errorf("config: at least one clickhouse host is required")
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// LogLevel converts the configured level to a slog level.
func (c *Config) LogLevel() string {
	return c.Logging.Level
}

func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
