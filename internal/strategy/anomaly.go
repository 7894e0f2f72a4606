package strategy

import (
	"context"
	"fmt"

	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/threat"
)

// anomalyHighSeverityScore promotes the anomaly to high severity.
const anomalyHighSeverityScore = 0.9

// BehavioralAnomaly flags events that deviate strongly from the
// principal's behavioral baseline. Anomalies never trigger automatic
// response; they require human judgment.
type BehavioralAnomaly struct {
	rule   detection.Rule
	scorer Scorer
}

// NewBehavioralAnomaly creates the behavioral-anomaly detector.
func NewBehavioralAnomaly(rule detection.Rule, scorer Scorer) *BehavioralAnomaly {
	return &BehavioralAnomaly{rule: rule, scorer: scorer}
}

// Name returns the strategy name.
func (s *BehavioralAnomaly) Name() string { return "behavioral_anomaly" }

// AppliesTo reports whether the strategy runs for the category. Failed
// logins are the brute-force detector's territory.
func (s *BehavioralAnomaly) AppliesTo(category schema.Category) bool {
	return category != schema.CategoryLoginFailed
}

// Evaluate scores the event against the principal's baseline and emits a
// threat when the deviation crosses the rule threshold.
func (s *BehavioralAnomaly) Evaluate(ctx context.Context, event *schema.ActivityEvent) (*threat.Event, error) {
	if !s.rule.Enabled || !s.AppliesTo(event.Category) {
		return nil, nil
	}
	if event.Anonymous() {
		return nil, nil
	}

	score, reasons := s.scorer.ScoreActivity(ctx, event)
	if score < s.rule.ScoreThreshold {
		return nil, nil
	}

	severity := threat.SeverityMedium
	if score >= anomalyHighSeverityScore {
		severity = threat.SeverityHigh
	}

	t := threat.New(threat.TypeBehavioralAnomaly, severity, event.IPAddress, event.Timestamp, score)
	t.UserID = event.UserID
	t.Username = event.Username
	t.Description = fmt.Sprintf("activity by %q deviates from behavioral baseline (score %.2f)",
		event.Username, score)
	t.DetectionMethod = "behavioral_baseline"
	t.Evidence = threat.NewEvidence(map[string]any{
		"deviation_score": score,
		"reasons":         reasons,
		"category":        string(event.Category),
	})
	if event.Resource != "" {
		t.AffectedResources = []string{event.Resource}
	}
	t.RecommendedActions = []string{
		"review recent account activity",
		"contact account owner",
		"require MFA on next login",
	}
	t.AutoResponseTaken = s.rule.AutoResponse
	return t, nil
}
