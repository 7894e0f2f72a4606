package detection

import (
	"testing"
	"time"

	"sentinel-engine/internal/threat"
)

func TestDefaultRulesCoverAllTypes(t *testing.T) {
	rules := DefaultRules()

	for _, typ := range []threat.Type{
		threat.TypeBruteForce,
		threat.TypeBehavioralAnomaly,
		threat.TypePrivilegeEscalation,
		threat.TypeMaliciousSource,
	} {
		rule, ok := rules[typ]
		if !ok {
			t.Errorf("no default rule for %s", typ)
			continue
		}
		if !rule.Enabled {
			t.Errorf("%s should be enabled by default", typ)
		}
	}
}

func TestDefaultRuleParameters(t *testing.T) {
	rules := DefaultRules()

	bf := rules.Get(threat.TypeBruteForce)
	if bf.Threshold != 5 {
		t.Errorf("brute force threshold = %d, want 5", bf.Threshold)
	}
	if bf.Window != 300*time.Second {
		t.Errorf("brute force window = %v, want 300s", bf.Window)
	}
	if bf.BlockTTL != time.Hour || bf.LockTTL != 30*time.Minute {
		t.Errorf("brute force mitigation TTLs = %v/%v, want 1h/30m", bf.BlockTTL, bf.LockTTL)
	}
	if !bf.AutoResponse {
		t.Error("brute force should authorize auto response")
	}

	anomaly := rules.Get(threat.TypeBehavioralAnomaly)
	if anomaly.ScoreThreshold != 0.8 {
		t.Errorf("anomaly score threshold = %v, want 0.8", anomaly.ScoreThreshold)
	}
	if anomaly.AutoResponse {
		t.Error("anomalies must never authorize auto response")
	}

	privesc := rules.Get(threat.TypePrivilegeEscalation)
	if privesc.DefaultSeverity != threat.SeverityCritical {
		t.Errorf("privilege escalation severity = %s, want critical", privesc.DefaultSeverity)
	}

	malicious := rules.Get(threat.TypeMaliciousSource)
	if malicious.BlockTTL != 24*time.Hour {
		t.Errorf("malicious source block TTL = %v, want 24h", malicious.BlockTTL)
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	rules := RuleSet{}

	rule := rules.Get(threat.TypeBruteForce)
	if rule.Threshold != 5 {
		t.Errorf("empty set should fall back to defaults, got threshold %d", rule.Threshold)
	}
}

func TestApplyOverrides(t *testing.T) {
	rules := DefaultRules()
	off := false

	err := rules.Apply([]Override{
		{
			Type:      string(threat.TypeBruteForce),
			Threshold: 10,
			Window:    10 * time.Minute,
		},
		{
			Type:         string(threat.TypePrivilegeEscalation),
			AutoResponse: &off,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bf := rules.Get(threat.TypeBruteForce)
	if bf.Threshold != 10 || bf.Window != 10*time.Minute {
		t.Errorf("override not applied: threshold=%d window=%v", bf.Threshold, bf.Window)
	}
	// Untouched fields keep their defaults.
	if bf.BlockTTL != time.Hour {
		t.Errorf("block TTL changed unexpectedly: %v", bf.BlockTTL)
	}

	privesc := rules.Get(threat.TypePrivilegeEscalation)
	if privesc.AutoResponse {
		t.Error("auto response override not applied")
	}
	if privesc.DefaultSeverity != threat.SeverityCritical {
		t.Error("severity changed unexpectedly")
	}
}

func TestApplyRejectsUnknownType(t *testing.T) {
	rules := DefaultRules()
	if err := rules.Apply([]Override{{Type: "ddos"}}); err == nil {
		t.Error("expected error for unknown threat type")
	}
}
