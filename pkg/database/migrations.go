package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates the full-text search GIN index on the hand-written
// `events` table. events is partitioned and not ent-managed (§6), so its
// indexes live here rather than in ent/schema annotations.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_events_message_gin
		ON events USING gin(to_tsvector('english', message))`)
	if err != nil {
		return fmt.Errorf("failed to create events.message GIN index: %w", err)
	}

	return nil
}

// CreatePartialUniqueIndexes creates the dedup-critical unique indexes on
// `events` that can't be plain column constraints because one of them is
// conditional (§6):
//   - (normalized_hash, timestamp) — idempotent-ingest dedup key, always enforced.
//   - (connector_id, external_id, timestamp) — enforced only when a connector
//     supplied both an id and an external id; absent either, no constraint applies.
func CreatePartialUniqueIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_normalized_hash_timestamp
		ON events (normalized_hash, timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create normalized_hash dedup index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_connector_external_timestamp
		ON events (connector_id, external_id, timestamp)
		WHERE connector_id IS NOT NULL AND external_id IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("failed to create connector/external_id dedup index: %w", err)
	}

	return nil
}
