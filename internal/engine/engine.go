// Package engine fans activity events out to the detection strategies,
// merges their candidate threats, and forwards each to the response
// dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/strategy"
	"sentinel-engine/internal/threat"
)

// highConfidenceFloor marks threats counted as high-confidence in summaries.
const highConfidenceFloor = 0.8

// Dispatcher handles a confirmed candidate threat event.
type Dispatcher interface {
	Handle(ctx context.Context, event *threat.Event) error
	AutoResponses() uint64
}

// AggregateReader supplies persisted per-type threat counts. Summaries
// consult it so figures survive process restarts and ring eviction.
type AggregateReader interface {
	CountsByType(ctx context.Context, windowHours int) (map[string]uint64, error)
}

// aggregateQueryTimeout bounds the persisted-counts lookup in Summary.
const aggregateQueryTimeout = 5 * time.Second

// Config configures the engine.
type Config struct {
	RingSize int `yaml:"ring_size"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{RingSize: 10000}
}

// Engine is the detection orchestrator. Construct one per process with
// injected collaborators and pass it explicitly to call sites.
type Engine struct {
	validator  *schema.Validator
	strategies []strategy.Strategy
	dispatcher Dispatcher
	ring       *Ring
	aggregates AggregateReader

	mu               sync.Mutex
	totalDetected    uint64
	totalProcessed   uint64
	totalRejected    uint64
	strategyErrors   uint64
	countsByType     map[threat.Type]uint64
	countsBySeverity map[threat.Severity]uint64
}

// New creates an engine with the given strategies and dispatcher.
func New(validator *schema.Validator, strategies []strategy.Strategy, dispatcher Dispatcher, cfg Config) *Engine {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultConfig().RingSize
	}
	return &Engine{
		validator:        validator,
		strategies:       strategies,
		dispatcher:       dispatcher,
		ring:             NewRing(cfg.RingSize),
		countsByType:     make(map[threat.Type]uint64),
		countsBySeverity: make(map[threat.Severity]uint64),
	}
}

// Process evaluates one activity event against all applicable strategies
// concurrently and dispatches every resulting threat. A failure in one
// strategy is logged and excluded from results; it never aborts sibling
// strategies. The returned error joins validation failure and any
// dispatch persistence failures; detected threats are returned either way.
func (e *Engine) Process(ctx context.Context, event *schema.ActivityEvent) ([]*threat.Event, error) {
	if err := e.validator.Validate(event); err != nil {
		e.mu.Lock()
		e.totalRejected++
		e.mu.Unlock()
		return nil, fmt.Errorf("engine: rejected event: %w", err)
	}

	applicable := make([]strategy.Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		if s.AppliesTo(event.Category) {
			applicable = append(applicable, s)
		}
	}

	results := make([]*threat.Event, len(applicable))
	errs := make([]error, len(applicable))

	var wg sync.WaitGroup
	for i, s := range applicable {
		wg.Add(1)
		go func(i int, s strategy.Strategy) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
				}
			}()
			results[i], errs[i] = s.Evaluate(ctx, event)
		}(i, s)
	}
	wg.Wait()

	threats := make([]*threat.Event, 0, len(applicable))
	for i, s := range applicable {
		if errs[i] != nil {
			e.mu.Lock()
			e.strategyErrors++
			e.mu.Unlock()
			slog.Warn("strategy failed, excluding from results",
				"strategy", s.Name(),
				"category", string(event.Category),
				"error", errs[i],
			)
			continue
		}
		if results[i] != nil {
			threats = append(threats, results[i])
		}
	}

	var dispatchErrs []error
	for _, t := range threats {
		e.record(t)
		if err := e.dispatcher.Handle(ctx, t); err != nil {
			slog.Error("dispatch failed", "threat_id", t.ID, "type", string(t.Type), "error", err)
			dispatchErrs = append(dispatchErrs, err)
		}
	}

	e.mu.Lock()
	e.totalProcessed++
	e.mu.Unlock()

	return threats, errors.Join(dispatchErrs...)
}

// UseAggregates attaches a persisted-counts reader consulted by Summary.
// Call before the engine starts serving; the field is not synchronized.
func (e *Engine) UseAggregates(r AggregateReader) {
	e.aggregates = r
}

func (e *Engine) record(t *threat.Event) {
	e.ring.Add(t)
	e.mu.Lock()
	e.totalDetected++
	e.countsByType[t.Type]++
	e.countsBySeverity[t.Severity]++
	e.mu.Unlock()
}

// Summary aggregates threat activity for dashboards. Window-scoped
// figures come from the in-memory ring, stored counts from the threat
// store, lifetime totals from the engine counters. Best effort, never
// authoritative.
type Summary struct {
	WindowHours      int               `json:"window_hours"`
	WindowDetected   int               `json:"window_detected"`
	WindowByType     map[string]int    `json:"window_by_type"`
	WindowBySeverity map[string]int    `json:"window_by_severity"`
	StoredByType     map[string]uint64 `json:"stored_by_type,omitempty"`
	HighConfidence   int               `json:"high_confidence"`
	AutoResponses    uint64            `json:"auto_responses"`
	TotalDetected    uint64            `json:"total_detected"`
	TotalProcessed   uint64            `json:"total_processed"`
	TotalRejected    uint64            `json:"total_rejected"`
	StrategyErrors   uint64            `json:"strategy_errors"`
	RingDepth        int               `json:"ring_depth"`
	RingCapacity     int               `json:"ring_capacity"`
}

// Summary reports counts by type and severity for the trailing window.
func (e *Engine) Summary(windowHours int) Summary {
	if windowHours <= 0 {
		windowHours = 24
	}
	cutoff := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	s := Summary{
		WindowHours:      windowHours,
		WindowByType:     make(map[string]int),
		WindowBySeverity: make(map[string]int),
		AutoResponses:    e.dispatcher.AutoResponses(),
		RingDepth:        e.ring.Len(),
		RingCapacity:     e.ring.Cap(),
	}

	for _, t := range e.ring.Snapshot() {
		if t.DetectedAt.Before(cutoff) {
			continue
		}
		s.WindowDetected++
		s.WindowByType[string(t.Type)]++
		s.WindowBySeverity[string(t.Severity)]++
		if t.Confidence >= highConfidenceFloor {
			s.HighConfidence++
		}
	}

	e.mu.Lock()
	s.TotalDetected = e.totalDetected
	s.TotalProcessed = e.totalProcessed
	s.TotalRejected = e.totalRejected
	s.StrategyErrors = e.strategyErrors
	e.mu.Unlock()

	// Persisted counts outlive restarts and ring eviction. Their absence
	// degrades the summary, it never fails it.
	if e.aggregates != nil {
		ctx, cancel := context.WithTimeout(context.Background(), aggregateQueryTimeout)
		stored, err := e.aggregates.CountsByType(ctx, windowHours)
		cancel()
		if err != nil {
			slog.Warn("persisted threat counts unavailable, summary is ring-only", "error", err)
		} else {
			s.StoredByType = stored
		}
	}

	return s
}
