package strategy

import (
	"context"
	"fmt"

	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/threat"
)

// BruteForce detects repeated failed logins from the same source against
// the same account. The failed-attempt counter lives in the cache
// collaborator so concurrent events share one view of the count.
type BruteForce struct {
	rule     detection.Rule
	counters Counters
}

// NewBruteForce creates the brute-force login detector.
func NewBruteForce(rule detection.Rule, counters Counters) *BruteForce {
	return &BruteForce{rule: rule, counters: counters}
}

// Name returns the strategy name.
func (s *BruteForce) Name() string { return "brute_force" }

// AppliesTo reports whether the strategy runs for the category.
// Brute-force only ever considers failed logins.
func (s *BruteForce) AppliesTo(category schema.Category) bool {
	return category == schema.CategoryLoginFailed
}

func failedLoginKey(ip, username string) string {
	return fmt.Sprintf("failed_login:%s:%s", ip, username)
}

// Evaluate counts the failed attempt and emits a threat once the count
// reaches the rule threshold. Every event at or past the threshold fires;
// the dispatcher collapses retries through the deterministic identifier.
func (s *BruteForce) Evaluate(ctx context.Context, event *schema.ActivityEvent) (*threat.Event, error) {
	if !s.rule.Enabled || !s.AppliesTo(event.Category) {
		return nil, nil
	}

	ttl := int(s.rule.Window.Seconds())
	count, err := s.counters.IncrementWithExpiry(ctx, failedLoginKey(event.IPAddress, event.Username), ttl)
	if err != nil {
		return nil, fmt.Errorf("brute_force: failed-attempt counter: %w: %w", ErrCollaboratorUnavailable, err)
	}

	if count < int64(s.rule.Threshold) {
		return nil, nil
	}

	confidence := threat.ClampConfidence(float64(count) / float64(2*s.rule.Threshold))
	t := threat.New(threat.TypeBruteForce, s.rule.DefaultSeverity, event.IPAddress, event.Timestamp, confidence)
	t.UserID = event.UserID
	t.Username = event.Username
	t.Description = fmt.Sprintf("%d failed login attempts for %q from %s within %s",
		count, event.Username, event.IPAddress, s.rule.Window)
	t.DetectionMethod = "threshold_counter"
	t.Evidence = threat.NewEvidence(map[string]any{
		"failed_attempts": count,
		"threshold":       s.rule.Threshold,
		"window_seconds":  ttl,
	})
	t.RecommendedActions = []string{
		"temporary address block",
		"temporary account lock",
		"require MFA on next login",
	}
	t.AutoResponseTaken = s.rule.AutoResponse
	return t, nil
}
