// Package threat defines the threat event model produced by detection
// strategies and consumed by the response dispatcher.
package threat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Type categorizes a detected threat.
type Type string

const (
	TypeBruteForce          Type = "brute_force"
	TypeBehavioralAnomaly   Type = "behavioral_anomaly"
	TypePrivilegeEscalation Type = "privilege_escalation"
	TypeMaliciousSource     Type = "malicious_source"
)

// IsValid checks if the threat type is a known value.
func (t Type) IsValid() bool {
	switch t {
	case TypeBruteForce, TypeBehavioralAnomaly, TypePrivilegeEscalation, TypeMaliciousSource:
		return true
	}
	return false
}

// Severity indicates how serious a threat is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a numeric ordering for severity comparison.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	}
	return 0
}

// Status tracks the lifecycle of a threat event.
// Threats are never deleted, only superseded in status.
type Status string

const (
	StatusDetected      Status = "detected"
	StatusInvestigating Status = "investigating"
	StatusConfirmed     Status = "confirmed"
	StatusFalsePositive Status = "false_positive"
	StatusMitigated     Status = "mitigated"
	StatusResolved      Status = "resolved"
)

// validTransitions describes the allowed lifecycle edges.
var validTransitions = map[Status][]Status{
	StatusDetected:      {StatusInvestigating, StatusConfirmed, StatusFalsePositive, StatusMitigated},
	StatusInvestigating: {StatusConfirmed, StatusFalsePositive},
	StatusConfirmed:     {StatusFalsePositive, StatusMitigated, StatusResolved},
	StatusMitigated:     {StatusResolved},
}

// CanTransition reports whether the status may advance to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EvidenceSchemaVersion tags the evidence payload format.
const EvidenceSchemaVersion = "1.0"

// Evidence carries the structured findings of the detecting strategy.
// Fields hold string, numeric, bool or string-slice primitives keyed by
// detector-specific names; Version tags the payload schema.
type Evidence struct {
	Version string         `json:"version"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NewEvidence creates an evidence payload with the current schema version.
func NewEvidence(fields map[string]any) Evidence {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Evidence{Version: EvidenceSchemaVersion, Fields: fields}
}

// Event is a detected threat. Created by a detection strategy; its status
// is advanced only by the response dispatcher or human action.
type Event struct {
	ID                 string    `json:"id"`
	Type               Type      `json:"type"`
	Severity           Severity  `json:"severity"`
	Status             Status    `json:"status"`
	SourceIP           string    `json:"source_ip"`
	UserID             string    `json:"user_id,omitempty"`
	Username           string    `json:"username,omitempty"`
	Description        string    `json:"description"`
	Evidence           Evidence  `json:"evidence"`
	Confidence         float64   `json:"confidence"`
	RiskScore          int       `json:"risk_score"`
	DetectionMethod    string    `json:"detection_method"`
	AffectedResources  []string  `json:"affected_resources,omitempty"`
	RecommendedActions []string  `json:"recommended_actions,omitempty"`
	AutoResponseTaken  bool      `json:"auto_response_taken"`
	Escalated          bool      `json:"escalated"`
	DetectedAt         time.Time `json:"detected_at"`
}

// idBucket is the time bucket width used for deterministic identifiers.
// Re-detections of the same (type, source) within one bucket collapse to
// the same ID so retries never persist duplicate rows.
const idBucket = 5 * time.Minute

// EventID computes the deterministic identifier for a threat.
func EventID(t Type, sourceIP string, ts time.Time) string {
	bucket := ts.UTC().Truncate(idBucket).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", t, sourceIP, bucket)))
	return hex.EncodeToString(sum[:])[:32]
}

// RiskFromConfidence derives the 0-100 risk score from a confidence value.
// The risk score is never set independently of this computation.
func RiskFromConfidence(confidence float64) int {
	risk := int(math.Round(confidence * 100))
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}

// ClampConfidence bounds a confidence value to [0.0, 1.0].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// New creates a threat event with a deterministic identifier and a risk
// score derived from the confidence value.
func New(t Type, severity Severity, sourceIP string, ts time.Time, confidence float64) *Event {
	confidence = ClampConfidence(confidence)
	return &Event{
		ID:         EventID(t, sourceIP, ts),
		Type:       t,
		Severity:   severity,
		Status:     StatusDetected,
		SourceIP:   sourceIP,
		Confidence: confidence,
		RiskScore:  RiskFromConfidence(confidence),
		Evidence:   NewEvidence(nil),
		DetectedAt: ts.UTC(),
	}
}
