// Package strategy implements the independent threat detection strategies.
// Each strategy is a side-effect-free evaluator: it consumes one activity
// event plus collaborator lookups and produces zero or one candidate
// threat event. All persistence happens later in the response dispatcher.
package strategy

import (
	"context"
	"errors"

	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/threat"
)

// ErrCollaboratorUnavailable marks a strategy failure caused by a cache
// or directory collaborator, as opposed to a defect in the strategy
// itself. The engine treats both the same way: log, exclude, continue.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// Strategy evaluates one activity event for a specific threat pattern.
// Evaluate returns (nil, nil) when the event is benign for this strategy.
// New strategies can be added without touching existing ones.
type Strategy interface {
	Name() string
	AppliesTo(category schema.Category) bool
	Evaluate(ctx context.Context, event *schema.ActivityEvent) (*threat.Event, error)
}

// Counters exposes the atomic cache primitives shared across concurrent
// strategy invocations. The counter and set are the single source of
// truth; strategies never hold in-process locks across these calls.
type Counters interface {
	IncrementWithExpiry(ctx context.Context, key string, ttlSeconds int) (int64, error)
	SetContains(ctx context.Context, setKey string, member string) (bool, error)
}

// Directory looks up the stored role for a principal.
type Directory interface {
	Role(ctx context.Context, userID string) (string, error)
}

// Scorer scores an event's deviation from the principal's baseline.
type Scorer interface {
	ScoreActivity(ctx context.Context, event *schema.ActivityEvent) (float64, []string)
}
