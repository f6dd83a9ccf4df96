package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 2

// migrations[i] upgrades a database from version i to i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS identity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		base_url TEXT NOT NULL,
		repository_name TEXT NOT NULL,
		earliest_datestamp INTEGER,
		deleted_record TEXT NOT NULL,
		granularity TEXT NOT NULL,
		admin_emails TEXT NOT NULL,
		compression TEXT NOT NULL DEFAULT '',
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS formats (
		prefix TEXT PRIMARY KEY,
		schema TEXT NOT NULL,
		namespace TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sets (
		spec TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		identifier TEXT PRIMARY KEY,
		datestamp INTEGER NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		about TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_datestamp ON records(datestamp, identifier);

	CREATE TABLE IF NOT EXISTS record_formats (
		identifier TEXT NOT NULL REFERENCES records(identifier) ON DELETE CASCADE,
		prefix TEXT NOT NULL REFERENCES formats(prefix) ON DELETE CASCADE,
		metadata TEXT,
		PRIMARY KEY (identifier, prefix)
	);
	CREATE INDEX IF NOT EXISTS idx_record_formats_prefix ON record_formats(prefix);

	CREATE TABLE IF NOT EXISTS record_sets (
		identifier TEXT NOT NULL REFERENCES records(identifier) ON DELETE CASCADE,
		spec TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (identifier, spec)
	);
	CREATE INDEX IF NOT EXISTS idx_record_sets_spec ON record_sets(spec);
	`,
	// Every import adds a row, other handles on the same file compare the
	// latest id to notice new content.
	`
	CREATE TABLE IF NOT EXISTS imports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		imported_at INTEGER NOT NULL,
		records INTEGER NOT NULL
	);
	`,
}

// migrate brings the schema up to schemaVersion.
func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: database has version %d, want at most %d", ErrSchemaVersion, version, schemaVersion)
	}
	for v := version; v < schemaVersion; v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to version %d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
