package threat

import (
	"testing"
	"time"
)

func TestEventIDDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 2, 30, 0, time.UTC)

	a := EventID(TypeBruteForce, "10.0.0.5", ts)
	b := EventID(TypeBruteForce, "10.0.0.5", ts)
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32-char ID, got %d chars", len(a))
	}
}

func TestEventIDCollapsesWithinBucket(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	// Same 5-minute bucket.
	a := EventID(TypeBruteForce, "10.0.0.5", base.Add(30*time.Second))
	b := EventID(TypeBruteForce, "10.0.0.5", base.Add(4*time.Minute))
	if a != b {
		t.Errorf("IDs within one bucket should collapse: %s vs %s", a, b)
	}

	// Next bucket.
	c := EventID(TypeBruteForce, "10.0.0.5", base.Add(6*time.Minute))
	if a == c {
		t.Error("IDs across buckets should differ")
	}
}

func TestEventIDVariesByTypeAndSource(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 2, 0, 0, time.UTC)

	base := EventID(TypeBruteForce, "10.0.0.5", ts)
	if got := EventID(TypeMaliciousSource, "10.0.0.5", ts); got == base {
		t.Error("different types should produce different IDs")
	}
	if got := EventID(TypeBruteForce, "10.0.0.6", ts); got == base {
		t.Error("different sources should produce different IDs")
	}
}

func TestRiskFromConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{0.0, 0},
		{0.5, 50},
		{0.75, 75},
		{0.954, 95},
		{0.955, 96},
		{1.0, 100},
		{-0.2, 0},
		{1.7, 100},
	}

	for _, tt := range tests {
		if got := RiskFromConfidence(tt.confidence); got != tt.want {
			t.Errorf("RiskFromConfidence(%v) = %d, want %d", tt.confidence, got, tt.want)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}

	for _, tt := range tests {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewDerivesRiskFromConfidence(t *testing.T) {
	ts := time.Now().UTC()

	e := New(TypePrivilegeEscalation, SeverityCritical, "192.168.1.9", ts, 0.9)
	if e.RiskScore != 90 {
		t.Errorf("risk score = %d, want 90", e.RiskScore)
	}
	if e.Status != StatusDetected {
		t.Errorf("new event status = %s, want %s", e.Status, StatusDetected)
	}
	if e.Evidence.Version != EvidenceSchemaVersion {
		t.Errorf("evidence version = %q, want %q", e.Evidence.Version, EvidenceSchemaVersion)
	}

	e = New(TypeMaliciousSource, SeverityHigh, "192.168.1.9", ts, 0.95)
	if e.RiskScore != 95 {
		t.Errorf("risk score = %d, want 95", e.RiskScore)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDetected, StatusMitigated, true},
		{StatusDetected, StatusInvestigating, true},
		{StatusDetected, StatusResolved, false},
		{StatusInvestigating, StatusConfirmed, true},
		{StatusInvestigating, StatusMitigated, false},
		{StatusConfirmed, StatusResolved, true},
		{StatusMitigated, StatusResolved, true},
		{StatusMitigated, StatusDetected, false},
		{StatusResolved, StatusDetected, false},
		{StatusFalsePositive, StatusConfirmed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank below %s", order[i-1], order[i])
		}
	}
	if Severity("bogus").Rank() != 0 {
		t.Error("unknown severity should rank 0")
	}
}

func TestTypeIsValid(t *testing.T) {
	for _, valid := range []Type{TypeBruteForce, TypeBehavioralAnomaly, TypePrivilegeEscalation, TypeMaliciousSource} {
		if !valid.IsValid() {
			t.Errorf("%s should be valid", valid)
		}
	}
	if Type("ddos").IsValid() {
		t.Error("unknown type should be invalid")
	}
}
