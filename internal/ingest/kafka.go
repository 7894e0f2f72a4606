// Package ingest consumes activity events from Kafka and feeds them to
// the detection engine.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/threat"
)

// Config holds Kafka consumer settings.
type Config struct {
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	MinBytes       int           `yaml:"min_bytes"`
	MaxBytes       int           `yaml:"max_bytes"`
	MaxWait        time.Duration `yaml:"max_wait"`
	CommitInterval time.Duration `yaml:"commit_interval"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// DefaultConfig returns the default Kafka configuration.
func DefaultConfig() Config {
	return Config{
		Brokers:        []string{"localhost:9092"},
		Topic:          "activity-events",
		ConsumerGroup:  "sentinel-engine",
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		HandlerTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("ingest: at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("ingest: topic is required")
	}
	if c.ConsumerGroup == "" {
		return errors.New("ingest: consumer group is required")
	}
	return nil
}

// Engine processes one activity event.
type Engine interface {
	Process(ctx context.Context, event *schema.ActivityEvent) ([]*threat.Event, error)
}

// ActivityRecorder persists accepted events so the profiler has history.
type ActivityRecorder interface {
	Insert(ctx context.Context, event *schema.ActivityEvent) error
}

// Consumer reads activity events from a Kafka topic and submits each one
// to the engine. Undecodable and invalid messages are logged and
// committed; they are never retried.
type Consumer struct {
	reader   *kafka.Reader
	config   Config
	engine   Engine
	recorder ActivityRecorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	consumed atomic.Int64
	detected atomic.Int64
	failures atomic.Int64
}

// NewConsumer creates a Kafka consumer for activity events.
func NewConsumer(cfg Config, engine Engine, recorder ActivityRecorder) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.New("ingest: engine is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.ConsumerGroup,
		Topic:          cfg.Topic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    kafka.LastOffset,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Debug(fmt.Sprintf(msg, args...), "component", "kafka-reader")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "component", "kafka-reader")
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())

	slog.Info("kafka consumer initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"group", cfg.ConsumerGroup,
	)

	return &Consumer{
		reader:   reader,
		config:   cfg,
		engine:   engine,
		recorder: recorder,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins consuming in a goroutine and returns immediately.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.consumeLoop(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("consumer loop exited", "error", err)
		}
	}()

	slog.Info("kafka consumer started", "topic", c.config.Topic, "group", c.config.ConsumerGroup)
}

func (c *Consumer) consumeLoop() error {
	for {
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			c.failures.Add(1)
			slog.Error("failed to fetch message", "error", err, "topic", c.config.Topic)

			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(time.Second):
				continue
			}
		}

		c.handleMessage(msg)

		if err := c.reader.CommitMessages(c.ctx, msg); err != nil {
			slog.Error("failed to commit offset", "error", err, "offset", msg.Offset)
		}
		c.consumed.Add(1)
	}
}

// handleMessage decodes, records, and processes one activity event.
// Detection failures never block consumption; the triggering activity is
// advisory and the offset is committed regardless.
func (c *Consumer) handleMessage(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.HandlerTimeout)
	defer cancel()

	var event schema.ActivityEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.failures.Add(1)
		slog.Warn("dropping undecodable message",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	if c.recorder != nil {
		if err := c.recorder.Insert(ctx, &event); err != nil {
			slog.Warn("failed to record activity", "error", err)
		}
	}

	threats, err := c.engine.Process(ctx, &event)
	if err != nil {
		c.failures.Add(1)
		slog.Warn("detection pipeline error",
			"category", string(event.Category),
			"source_ip", event.IPAddress,
			"error", err,
		)
	}
	c.detected.Add(int64(len(threats)))
}

// Metrics holds consumer statistics.
type Metrics struct {
	Consumed int64 `json:"consumed"`
	Detected int64 `json:"detected"`
	Failures int64 `json:"failures"`
}

// GetMetrics returns current consumer metrics.
func (c *Consumer) GetMetrics() Metrics {
	return Metrics{
		Consumed: c.consumed.Load(),
		Detected: c.detected.Load(),
		Failures: c.failures.Load(),
	}
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop() error {
	if c.closed.Swap(true) {
		return nil
	}

	slog.Info("stopping kafka consumer", "consumed", c.consumed.Load(), "detected", c.detected.Load())

	c.cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("ingest: failed to close consumer: %w", err)
	}
	return nil
}
