package store

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	SQL         string
	Description string
	Version     int
}

// migrationManager handles schema migrations for the system tables
type migrationManager struct {
	db *sql.DB
}

func newMigrationManager(db *sql.DB) *migrationManager {
	return &migrationManager{db: db}
}

// getCurrentVersion returns the current schema version
func (m *migrationManager) getCurrentVersion() (int, error) {
	createVersionTable := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := m.db.Exec(createVersionTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}

	return version, nil
}

// applyMigration applies a single migration
func (m *migrationManager) applyMigration(migration Migration) error {
	if _, err := m.getCurrentVersion(); err != nil {
		return fmt.Errorf("failed to initialize schema version: %w", err)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d (%s): %w",
			migration.Version, migration.Description, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	return nil
}

// runMigrations applies all pending migrations
func (m *migrationManager) runMigrations() error {
	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range getMigrations() {
		if migration.Version > currentVersion {
			if err := m.applyMigration(migration); err != nil {
				return fmt.Errorf("failed to apply migration: %w", err)
			}
		}
	}

	return nil
}

// getMigrations returns all available migrations in order
func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Initial system table creation",
			SQL: `
				-- Instrumented query executions, append-only
				CREATE TABLE IF NOT EXISTS query_performance_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					query_id TEXT NOT NULL,
					query_sql TEXT NOT NULL,
					execution_time_ms REAL NOT NULL,
					rows_returned INTEGER NOT NULL DEFAULT 0,
					rows_scanned INTEGER NOT NULL DEFAULT 0,
					indexes_used TEXT,
					cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
					timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_query_log_query_id ON query_performance_log(query_id);
				CREATE INDEX IF NOT EXISTS idx_query_log_timestamp ON query_performance_log(timestamp);
				CREATE INDEX IF NOT EXISTS idx_query_log_exec_time ON query_performance_log(execution_time_ms);

				-- Completed backups; failed backups never write a row
				CREATE TABLE IF NOT EXISTS backup_metadata (
					id TEXT PRIMARY KEY,
					backup_type TEXT NOT NULL,
					timestamp DATETIME NOT NULL,
					size_bytes INTEGER NOT NULL,
					compressed BOOLEAN NOT NULL DEFAULT FALSE,
					encrypted BOOLEAN NOT NULL DEFAULT FALSE,
					checksum TEXT NOT NULL,
					tables TEXT NOT NULL,
					record_count INTEGER NOT NULL DEFAULT 0,
					version TEXT NOT NULL,
					status TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_backup_metadata_timestamp ON backup_metadata(timestamp);

				-- Per-table statistics, superseded on each refresh
				CREATE TABLE IF NOT EXISTS table_statistics (
					table_name TEXT PRIMARY KEY,
					row_count INTEGER NOT NULL DEFAULT 0,
					avg_row_size INTEGER NOT NULL DEFAULT 0,
					index_count INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				-- Durable copies of high-priority suggestions
				CREATE TABLE IF NOT EXISTS optimization_suggestions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					suggestion_type TEXT NOT NULL,
					priority TEXT NOT NULL,
					message TEXT NOT NULL,
					suggested_sql TEXT,
					suggested_index TEXT,
					status TEXT NOT NULL DEFAULT 'pending',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_suggestions_status ON optimization_suggestions(status);

				-- Periodic aggregates of the query log, append-only
				CREATE TABLE IF NOT EXISTS system_performance_snapshots (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					snapshot_type TEXT NOT NULL,
					total_queries INTEGER NOT NULL DEFAULT 0,
					avg_query_time_ms REAL NOT NULL DEFAULT 0,
					slow_queries INTEGER NOT NULL DEFAULT 0,
					failed_queries INTEGER NOT NULL DEFAULT 0,
					period_start DATETIME NOT NULL,
					period_end DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_snapshots_period_end ON system_performance_snapshots(period_end);
			`,
		},
	}
}

// SystemTables lists the tables owned by this subsystem. User-table
// enumeration and backup exports exclude them.
func SystemTables() []string {
	return []string{
		"query_performance_log",
		"backup_metadata",
		"table_statistics",
		"optimization_suggestions",
		"system_performance_snapshots",
		"schema_version",
	}
}
