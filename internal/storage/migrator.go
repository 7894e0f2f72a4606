package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// migrations are applied in order at startup. ReplacingMergeTree keyed
// by threat_id makes threat upserts idempotent: re-detections within the
// same identifier bucket collapse to one row at merge time.
var migrations = []struct {
	Version int
	Name    string
	SQL     string
}{
	{
		Version: 1,
		Name:    "create_activity_events",
		SQL: `
			CREATE TABLE IF NOT EXISTS activity_events (
				user_id     String,
				username    String,
				ip_address  String,
				user_agent  String,
				resource    String,
				action      String,
				category    LowCardinality(String),
				timestamp   DateTime64(3, 'UTC'),
				recorded_at DateTime64(3, 'UTC') DEFAULT now64(3)
			)
			ENGINE = MergeTree()
			PARTITION BY toYYYYMM(timestamp)
			ORDER BY (user_id, timestamp)
			TTL toDateTime(timestamp) + INTERVAL 90 DAY
		`,
	},
	{
		Version: 2,
		Name:    "create_threat_events",
		SQL: `
			CREATE TABLE IF NOT EXISTS threat_events (
				threat_id           String,
				threat_type         LowCardinality(String),
				severity            LowCardinality(String),
				status              LowCardinality(String),
				source_ip           String,
				user_id             String,
				username            String,
				description         String,
				evidence            String,
				confidence          Float64,
				risk_score          UInt8,
				detection_method    LowCardinality(String),
				affected_resources  Array(String),
				recommended_actions Array(String),
				auto_response_taken UInt8,
				escalated           UInt8,
				detected_at         DateTime64(3, 'UTC'),
				updated_at          DateTime64(3, 'UTC') DEFAULT now64(3)
			)
			ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY toYYYYMM(detected_at)
			ORDER BY threat_id
		`,
	},
}

// Migrator applies the storage schema.
type Migrator struct {
	client *ClickHouseClient
}

// NewMigrator creates a new Migrator.
func NewMigrator(client *ClickHouseClient) *Migrator {
	return &Migrator{client: client}
}

// Run executes all pending migrations.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			slog.Debug("migration already applied",
				"version", migration.Version,
				"name", migration.Name,
			)
			continue
		}

		slog.Info("applying migration",
			"version", migration.Version,
			"name", migration.Name,
		)

		if err := m.client.Exec(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w",
				migration.Version, migration.Name, err)
		}

		if err := m.recordMigration(ctx, migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version UInt32,
			name String,
			applied_at DateTime DEFAULT now()
		)
		ENGINE = MergeTree()
		ORDER BY version
	`
	return m.client.Exec(ctx, query)
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := m.client.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version uint32
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[int(version)] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) recordMigration(ctx context.Context, version int, name string) error {
	return m.client.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		uint32(version), name,
	)
}
