package strategy

import (
	"context"
	"fmt"
	"strings"

	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/threat"
)

// escalationKeywords mark actions or resources that imply an attempt to
// gain elevated privileges.
var escalationKeywords = []string{"admin", "root", "sudo", "elevation"}

// elevatedRoles are roles already authorized for privileged actions;
// their activity never counts as an escalation attempt.
var elevatedRoles = map[string]bool{
	"admin":          true,
	"administrator":  true,
	"superadmin":     true,
	"root":           true,
	"security_admin": true,
}

const privilegeEscalationConfidence = 0.9

// PrivilegeEscalation detects non-elevated principals reaching for
// privileged actions or resources.
type PrivilegeEscalation struct {
	rule      detection.Rule
	directory Directory
}

// NewPrivilegeEscalation creates the privilege-escalation detector.
func NewPrivilegeEscalation(rule detection.Rule, directory Directory) *PrivilegeEscalation {
	return &PrivilegeEscalation{rule: rule, directory: directory}
}

// Name returns the strategy name.
func (s *PrivilegeEscalation) Name() string { return "privilege_escalation" }

// AppliesTo reports whether the strategy runs for the category. The
// keyword match gates detection, so every category is considered.
func (s *PrivilegeEscalation) AppliesTo(category schema.Category) bool { return true }

// matchKeyword returns the first escalation keyword found in the event's
// action or resource, or "" when none match.
func matchKeyword(event *schema.ActivityEvent) string {
	haystack := strings.ToLower(event.Action + " " + event.Resource)
	for _, kw := range escalationKeywords {
		if strings.Contains(haystack, kw) {
			return kw
		}
	}
	return ""
}

// Evaluate fires when a non-elevated principal touches an escalation
// keyword. A directory failure skips detection for this event rather
// than risking a false positive on a legitimate administrator.
func (s *PrivilegeEscalation) Evaluate(ctx context.Context, event *schema.ActivityEvent) (*threat.Event, error) {
	if !s.rule.Enabled {
		return nil, nil
	}

	keyword := matchKeyword(event)
	if keyword == "" {
		return nil, nil
	}

	if !event.Anonymous() {
		role, err := s.directory.Role(ctx, event.UserID)
		if err != nil {
			return nil, fmt.Errorf("privilege_escalation: role lookup for %q: %w: %w", event.UserID, ErrCollaboratorUnavailable, err)
		}
		if elevatedRoles[strings.ToLower(role)] {
			return nil, nil
		}
	}

	t := threat.New(threat.TypePrivilegeEscalation, s.rule.DefaultSeverity, event.IPAddress,
		event.Timestamp, privilegeEscalationConfidence)
	t.UserID = event.UserID
	t.Username = event.Username
	t.Description = fmt.Sprintf("principal %q attempted privileged operation matching %q",
		event.Username, keyword)
	t.DetectionMethod = "pattern_match"
	t.Evidence = threat.NewEvidence(map[string]any{
		"matched_keyword": keyword,
		"action":          event.Action,
		"resource":        event.Resource,
	})
	if event.Resource != "" {
		t.AffectedResources = []string{event.Resource}
	}
	t.RecommendedActions = []string{
		"investigate immediately",
		"suspend account if confirmed",
		"audit recent access by this principal",
	}
	t.AutoResponseTaken = s.rule.AutoResponse
	t.Escalated = true
	return t, nil
}
