package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"sentinel-engine/internal/threat"
)

// ThreatStore persists threat events. The table is a ReplacingMergeTree
// keyed by threat_id, so inserting an event that already exists supersedes
// the stored row instead of duplicating it.
type ThreatStore struct {
	client *ClickHouseClient
}

// NewThreatStore creates a threat store.
func NewThreatStore(client *ClickHouseClient) *ThreatStore {
	return &ThreatStore{client: client}
}

// Upsert writes a threat event, idempotent by identifier.
func (s *ThreatStore) Upsert(ctx context.Context, t *threat.Event) error {
	evidence, err := json.Marshal(t.Evidence)
	if err != nil {
		return fmt.Errorf("storage: encode evidence for %s: %w", t.ID, err)
	}

	query := `
		INSERT INTO threat_events (
			threat_id, threat_type, severity, status, source_ip,
			user_id, username, description, evidence, confidence,
			risk_score, detection_method, affected_resources,
			recommended_actions, auto_response_taken, escalated, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.client.Exec(ctx, query,
		t.ID,
		string(t.Type),
		string(t.Severity),
		string(t.Status),
		t.SourceIP,
		t.UserID,
		t.Username,
		t.Description,
		string(evidence),
		t.Confidence,
		uint8(t.RiskScore),
		t.DetectionMethod,
		t.AffectedResources,
		t.RecommendedActions,
		boolToUInt8(t.AutoResponseTaken),
		boolToUInt8(t.Escalated),
		t.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert threat %s: %w", t.ID, err)
	}
	return nil
}

// CountsByType returns persisted threat counts per type for the trailing
// window, used to supplement the in-memory summary.
func (s *ThreatStore) CountsByType(ctx context.Context, windowHours int) (map[string]uint64, error) {
	query := `
		SELECT threat_type, count() AS c
		FROM threat_events FINAL
		WHERE detected_at >= now() - INTERVAL ? HOUR
		GROUP BY threat_type
	`

	rows, err := s.client.Query(ctx, query, windowHours)
	if err != nil {
		return nil, fmt.Errorf("storage: counts by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var threatType string
		var count uint64
		if err := rows.Scan(&threatType, &count); err != nil {
			return nil, fmt.Errorf("storage: counts by type: %w", err)
		}
		counts[threatType] = count
	}
	return counts, rows.Err()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
