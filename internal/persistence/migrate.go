package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] moves the schema from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE imports (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			imported_at INTEGER NOT NULL,
			files INTEGER NOT NULL DEFAULT 0,
			total_bytes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE scan_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			import_id TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			declared_count INTEGER NOT NULL,
			records INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			UNIQUE(name, content_hash)
		);`,
		`CREATE TABLE sightings (
			scan_file_id INTEGER NOT NULL REFERENCES scan_files(id) ON DELETE CASCADE,
			mac TEXT NOT NULL,
			PRIMARY KEY(scan_file_id, mac)
		);`,
		`CREATE INDEX idx_sightings_mac ON sightings(mac);`,
	},
	{
		`ALTER TABLE imports ADD COLUMN skipped INTEGER NOT NULL DEFAULT 0;`,
	},
}

// SchemaVersion is the user_version a fully migrated archive reports.
var SchemaVersion = len(migrations)

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("archive schema version %d is newer than supported %d", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		if err := applyMigration(ctx, db, v); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, from int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", from+1, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range migrations[from] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", from+1, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, from+1)); err != nil {
		return fmt.Errorf("set schema version %d: %w", from+1, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", from+1, err)
	}

	return nil
}
