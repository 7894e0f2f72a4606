// Package profile builds and scores per-principal behavioral baselines.
package profile

import (
	"time"
)

// Profile is a derived behavioral baseline for one principal. It is built
// from a trailing window of historical activity and never mutated in
// place; each build produces a fresh snapshot.
type Profile struct {
	UserID           string          `json:"user_id"`
	LoginHours       map[int]bool    `json:"login_hours"`       // typical hours of day, 0-23
	LoginDays        map[int]bool    `json:"login_days"`        // typical days of week, 0=Sunday
	KnownIPs         map[string]bool `json:"known_ips"`
	KnownAgents      map[string]bool `json:"known_agents"`
	CommonResources  map[string]bool `json:"common_resources"`
	IPStability      float64         `json:"ip_stability"` // fraction of activity from the top address
	OffHoursActivity bool            `json:"off_hours_activity"`
	SampleCount      int             `json:"sample_count"`
	BuiltAt          time.Time       `json:"built_at"`
}

// emptyProfile returns an all-empty baseline for a principal. Used when
// no history exists or a collaborator fails; detection degrades
// gracefully instead of crashing the pipeline.
func emptyProfile(userID string) *Profile {
	return &Profile{
		UserID:          userID,
		LoginHours:      make(map[int]bool),
		LoginDays:       make(map[int]bool),
		KnownIPs:        make(map[string]bool),
		KnownAgents:     make(map[string]bool),
		CommonResources: make(map[string]bool),
		BuiltAt:         time.Now().UTC(),
	}
}

// Empty reports whether the profile has no baseline data.
func (p *Profile) Empty() bool {
	return p == nil || p.SampleCount == 0
}
