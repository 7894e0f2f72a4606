package strategy

import (
	"context"
	"fmt"

	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/threat"
)

// MaliciousIPSet is the cache set holding known-malicious addresses.
// The set is fed externally (threat intel feeds); the engine only reads it.
const MaliciousIPSet = "malicious_ips"

const maliciousSourceConfidence = 0.95

// MaliciousSource flags any activity originating from an address on the
// known-malicious set.
type MaliciousSource struct {
	rule     detection.Rule
	counters Counters
}

// NewMaliciousSource creates the malicious-source detector.
func NewMaliciousSource(rule detection.Rule, counters Counters) *MaliciousSource {
	return &MaliciousSource{rule: rule, counters: counters}
}

// Name returns the strategy name.
func (s *MaliciousSource) Name() string { return "malicious_source" }

// AppliesTo reports whether the strategy runs for the category. Every
// event carries a source address, so every category is considered.
func (s *MaliciousSource) AppliesTo(category schema.Category) bool { return true }

// Evaluate checks the source address against the known-malicious set.
func (s *MaliciousSource) Evaluate(ctx context.Context, event *schema.ActivityEvent) (*threat.Event, error) {
	if !s.rule.Enabled {
		return nil, nil
	}

	listed, err := s.counters.SetContains(ctx, MaliciousIPSet, event.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("malicious_source: membership check for %s: %w: %w", event.IPAddress, ErrCollaboratorUnavailable, err)
	}
	if !listed {
		return nil, nil
	}

	t := threat.New(threat.TypeMaliciousSource, s.rule.DefaultSeverity, event.IPAddress,
		event.Timestamp, maliciousSourceConfidence)
	t.UserID = event.UserID
	t.Username = event.Username
	t.Description = fmt.Sprintf("activity from known-malicious address %s", event.IPAddress)
	t.DetectionMethod = "threat_intel"
	t.Evidence = threat.NewEvidence(map[string]any{
		"intel_set": MaliciousIPSet,
		"category":  string(event.Category),
	})
	t.RecommendedActions = []string{
		"block source address",
		"review all recent activity from this address",
	}
	t.AutoResponseTaken = s.rule.AutoResponse
	return t, nil
}
