// Package detection holds the static per-threat-type detection rules.
// Rules are loaded once at startup and read-only thereafter.
package detection

import (
	"fmt"
	"time"

	"sentinel-engine/internal/threat"
)

// Rule configures one threat type: numeric thresholds, default severity,
// and whether automatic response is authorized.
type Rule struct {
	Type            threat.Type     `yaml:"type"`
	Enabled         bool            `yaml:"enabled"`
	DefaultSeverity threat.Severity `yaml:"default_severity"`
	AutoResponse    bool            `yaml:"auto_response"`

	// Brute-force parameters.
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`

	// Behavioral-anomaly parameters.
	ScoreThreshold float64 `yaml:"score_threshold"`

	// Mitigation durations.
	BlockTTL time.Duration `yaml:"block_ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// RuleSet maps threat types to their rules.
type RuleSet map[threat.Type]Rule

// DefaultRules returns the built-in detection rules.
func DefaultRules() RuleSet {
	return RuleSet{
		threat.TypeBruteForce: {
			Type:            threat.TypeBruteForce,
			Enabled:         true,
			DefaultSeverity: threat.SeverityHigh,
			AutoResponse:    true,
			Threshold:       5,
			Window:          300 * time.Second,
			BlockTTL:        time.Hour,
			LockTTL:         30 * time.Minute,
		},
		threat.TypeBehavioralAnomaly: {
			Type:            threat.TypeBehavioralAnomaly,
			Enabled:         true,
			DefaultSeverity: threat.SeverityMedium,
			AutoResponse:    false, // anomalies require human judgment
			ScoreThreshold:  0.8,
		},
		threat.TypePrivilegeEscalation: {
			Type:            threat.TypePrivilegeEscalation,
			Enabled:         true,
			DefaultSeverity: threat.SeverityCritical,
			AutoResponse:    true,
		},
		threat.TypeMaliciousSource: {
			Type:            threat.TypeMaliciousSource,
			Enabled:         true,
			DefaultSeverity: threat.SeverityHigh,
			AutoResponse:    true,
			BlockTTL:        24 * time.Hour,
		},
	}
}

// Get returns the rule for a threat type, falling back to the built-in
// default when the set has no entry.
func (rs RuleSet) Get(t threat.Type) Rule {
	if rule, ok := rs[t]; ok {
		return rule
	}
	return DefaultRules()[t]
}

// Override describes a YAML rule override. Zero values leave the
// corresponding default untouched; Enabled and AutoResponse apply only
// when the pointer is set.
type Override struct {
	Type            string          `yaml:"type"`
	Enabled         *bool           `yaml:"enabled"`
	AutoResponse    *bool           `yaml:"auto_response"`
	DefaultSeverity threat.Severity `yaml:"default_severity"`
	Threshold       int             `yaml:"threshold"`
	Window          time.Duration   `yaml:"window"`
	ScoreThreshold  float64         `yaml:"score_threshold"`
	BlockTTL        time.Duration   `yaml:"block_ttl"`
	LockTTL         time.Duration   `yaml:"lock_ttl"`
}

// Apply merges YAML overrides onto the rule set.
func (rs RuleSet) Apply(overrides []Override) error {
	for _, o := range overrides {
		t := threat.Type(o.Type)
		if !t.IsValid() {
			return fmt.Errorf("detection: unknown threat type in rule override: %q", o.Type)
		}
		rule := rs.Get(t)
		if o.Enabled != nil {
			rule.Enabled = *o.Enabled
		}
		if o.AutoResponse != nil {
			rule.AutoResponse = *o.AutoResponse
		}
		if o.DefaultSeverity != "" {
			rule.DefaultSeverity = o.DefaultSeverity
		}
		if o.Threshold > 0 {
			rule.Threshold = o.Threshold
		}
		if o.Window > 0 {
			rule.Window = o.Window
		}
		if o.ScoreThreshold > 0 {
			rule.ScoreThreshold = o.ScoreThreshold
		}
		if o.BlockTTL > 0 {
			rule.BlockTTL = o.BlockTTL
		}
		if o.LockTTL > 0 {
			rule.LockTTL = o.LockTTL
		}
		rs[t] = rule
	}
	return nil
}
