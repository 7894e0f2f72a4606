package storage

import (
	"context"
	"fmt"
	"time"

	"sentinel-engine/internal/schema"
)

// ActivityStore persists and queries historical activity. The profiler
// reads from it to build behavioral baselines; the ingest pipeline writes
// every accepted event into it.
type ActivityStore struct {
	client *ClickHouseClient
}

// NewActivityStore creates an activity store.
func NewActivityStore(client *ClickHouseClient) *ActivityStore {
	return &ActivityStore{client: client}
}

// Insert records one activity event.
func (s *ActivityStore) Insert(ctx context.Context, e *schema.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (
			user_id, username, ip_address, user_agent,
			resource, action, category, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.client.Exec(ctx, query,
		e.UserID,
		e.Username,
		e.IPAddress,
		e.UserAgent,
		e.Resource,
		e.Action,
		string(e.Category),
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("storage: insert activity: %w", err)
	}
	return nil
}

// Query returns a principal's activity between since and until.
func (s *ActivityStore) Query(ctx context.Context, userID string, since, until time.Time) ([]schema.ActivityRecord, error) {
	query := `
		SELECT user_id, username, ip_address, user_agent,
		       resource, action, category, timestamp, recorded_at
		FROM activity_events
		WHERE user_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := s.client.Query(ctx, query, userID, since, until)
	if err != nil {
		return nil, fmt.Errorf("storage: query activity for %s: %w", userID, err)
	}
	defer rows.Close()

	var records []schema.ActivityRecord
	for rows.Next() {
		var r schema.ActivityRecord
		var category string
		if err := rows.Scan(
			&r.UserID, &r.Username, &r.IPAddress, &r.UserAgent,
			&r.Resource, &r.Action, &category, &r.Timestamp, &r.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan activity row: %w", err)
		}
		r.Category = schema.Category(category)
		records = append(records, r)
	}
	return records, rows.Err()
}
