package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the schema version written by InitSchema.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER NOT NULL,
    applied_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS models (
    id             TEXT    PRIMARY KEY,
    created_at     TEXT    NOT NULL,
    blocks_per_day INTEGER NOT NULL,
    block_minutes  INTEGER NOT NULL,
    day_count      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at);

CREATE TABLE IF NOT EXISTS transition_counts (
    model_id TEXT    NOT NULL REFERENCES models(id) ON DELETE CASCADE,
    block    INTEGER NOT NULL,
    origin   INTEGER NOT NULL,
    dest     INTEGER NOT NULL,
    count    INTEGER NOT NULL,
    PRIMARY KEY (model_id, block, origin, dest)
);
`

// InitSchema creates the tables on a fresh database and leaves an existing
// one untouched.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := getSchemaVersion(ctx, db); err == nil {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, fmt.Errorf("schema_version is empty")
	}
	return int(version.Int64), nil
}
