// Package catalog provides persistent storage for detection runs.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the run catalog.
const schemaV1 = `
-- One row per detection run (denormalized for single-query listing)
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    source TEXT NOT NULL,          -- event table the run was made from
    columns TEXT NOT NULL,         -- JSON array of feature column names

    -- Pipeline parameters
    k INTEGER NOT NULL,
    layers INTEGER NOT NULL,
    quantile REAL NOT NULL,
    min_points INTEGER NOT NULL,
    eps REAL NOT NULL,             -- derived clustering radius

    -- Outcome counters
    num_events INTEGER NOT NULL,
    num_survivors INTEGER NOT NULL,
    num_clusters INTEGER NOT NULL,

    duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);

-- Per-cluster summaries of a run
CREATE TABLE IF NOT EXISTS run_clusters (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    label INTEGER NOT NULL,        -- cluster id, -1 for the noise bucket
    size INTEGER NOT NULL,
    simulated_frac REAL NOT NULL,  -- fraction of ground-truth simulated events
    centroid TEXT NOT NULL,        -- JSON array over the position columns
    PRIMARY KEY (run_id, label)
);

-- Schema bookkeeping
CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);
`

// InitSchema creates the catalog tables when missing and records the schema
// version. It is idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_meta`).Scan(&count); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_meta (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	}
	return nil
}
