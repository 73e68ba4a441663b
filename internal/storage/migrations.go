package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrations are applied in order on every boot. Statements are written to
// be re-runnable so no version table is needed.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          UUID PRIMARY KEY,
		tx_id       UUID NOT NULL,
		seq         BIGINT NOT NULL UNIQUE,
		contract    TEXT NOT NULL,
		name        TEXT NOT NULL,
		attrs       JSONB NOT NULL DEFAULT '[]',
		event_time  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_contract ON events (contract)`,
	`CREATE INDEX IF NOT EXISTS idx_events_name ON events (name)`,
	`CREATE INDEX IF NOT EXISTS idx_events_tx ON events (tx_id)`,
}

// Apply runs the schema migrations against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
