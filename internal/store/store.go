// Package store provides the persistence boundary over the embedded SQLite
// database: the five system tables used by the optimizer, backup manager
// and orchestrator, plus schema introspection helpers.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the single logical database connection
type Store struct {
	db *sql.DB
}

// Open opens the database, applies engine pragmas and runs migrations
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Durability/performance pragmas: WAL journaling, normal sync, larger
	// page cache, foreign keys on
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -8000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}

	migrationMgr := newMigrationManager(db)
	if err := migrationMgr.runMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// DB exposes the underlying connection for statement execution. The
// optimizer and backup manager issue caller SQL through it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertQueryMetric appends one execution to the query performance log
func (s *Store) InsertQueryMetric(metric *QueryMetric) error {
	query := `
		INSERT INTO query_performance_log (query_id, query_sql, execution_time_ms,
			rows_returned, rows_scanned, indexes_used, cache_hit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	indexesJSON, err := json.Marshal(metric.IndexesUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal indexes used: %w", err)
	}

	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}

	result, err := s.db.Exec(query, metric.QueryID, metric.SQL, metric.ExecutionTime,
		metric.RowsReturned, metric.RowsScanned, string(indexesJSON), metric.CacheHit, metric.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert query metric: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get query metric ID: %w", err)
	}
	metric.ID = id

	return nil
}

// QueryStatsSince aggregates the query log from the given time
func (s *Store) QueryStatsSince(since time.Time, slowThresholdMs float64) (*QueryStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(AVG(execution_time_ms), 0),
			COALESCE(SUM(CASE WHEN execution_time_ms > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0)
		FROM query_performance_log
		WHERE timestamp >= ?
	`

	stats := &QueryStats{}
	err := s.db.QueryRow(query, slowThresholdMs, since).Scan(
		&stats.TotalQueries, &stats.AvgQueryTime, &stats.SlowQueries, &stats.CacheHits,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate query stats: %w", err)
	}

	if stats.TotalQueries > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalQueries)
	}

	return stats, nil
}

// SlowQueryGroupsSince groups the log by query digest, ordered by average
// execution time then frequency, both descending
func (s *Store) SlowQueryGroupsSince(since time.Time, limit int) ([]*SlowQueryGroup, error) {
	query := `
		SELECT query_id, MIN(query_sql), COUNT(*),
			AVG(execution_time_ms), MAX(execution_time_ms)
		FROM query_performance_log
		WHERE timestamp >= ?
		GROUP BY query_id
		ORDER BY AVG(execution_time_ms) DESC, COUNT(*) DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to group slow queries: %w", err)
	}
	defer rows.Close()

	var groups []*SlowQueryGroup
	for rows.Next() {
		var g SlowQueryGroup
		if err := rows.Scan(&g.QueryID, &g.SQL, &g.TotalExecutions, &g.AvgTime, &g.MaxTime); err != nil {
			return nil, fmt.Errorf("failed to scan slow query group: %w", err)
		}
		groups = append(groups, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slow query groups: %w", err)
	}

	return groups, nil
}

// MetricsSince returns all raw metrics recorded from the given time
func (s *Store) MetricsSince(since time.Time) ([]*QueryMetric, error) {
	query := `
		SELECT id, query_id, query_sql, execution_time_ms, rows_returned,
			rows_scanned, indexes_used, cache_hit, timestamp
		FROM query_performance_log
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*QueryMetric
	for rows.Next() {
		var m QueryMetric
		var indexesJSON sql.NullString

		err := rows.Scan(&m.ID, &m.QueryID, &m.SQL, &m.ExecutionTime,
			&m.RowsReturned, &m.RowsScanned, &indexesJSON, &m.CacheHit, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query metric: %w", err)
		}

		if indexesJSON.Valid && indexesJSON.String != "" {
			if err := json.Unmarshal([]byte(indexesJSON.String), &m.IndexesUsed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal indexes used: %w", err)
			}
		}

		metrics = append(metrics, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query metrics: %w", err)
	}

	return metrics, nil
}

// PruneQueryLog removes metric rows older than the given time
func (s *Store) PruneQueryLog(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM query_performance_log WHERE timestamp < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune query log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// InsertBackupMetadata records a completed backup
func (s *Store) InsertBackupMetadata(meta *BackupMetadata) error {
	query := `
		INSERT INTO backup_metadata (id, backup_type, timestamp, size_bytes,
			compressed, encrypted, checksum, tables, record_count, version, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tablesJSON, err := json.Marshal(meta.Tables)
	if err != nil {
		return fmt.Errorf("failed to marshal backup tables: %w", err)
	}

	_, err = s.db.Exec(query, meta.ID, meta.Type, meta.Timestamp, meta.SizeBytes,
		meta.Compressed, meta.Encrypted, meta.Checksum, string(tablesJSON),
		meta.RecordCount, meta.Version, meta.Status)
	if err != nil {
		return fmt.Errorf("failed to insert backup metadata: %w", err)
	}

	return nil
}

// GetBackupMetadata retrieves backup metadata by id
func (s *Store) GetBackupMetadata(id string) (*BackupMetadata, error) {
	query := `
		SELECT id, backup_type, timestamp, size_bytes, compressed, encrypted,
			checksum, tables, record_count, version, status
		FROM backup_metadata
		WHERE id = ?
	`

	meta, err := scanBackupMetadata(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get backup metadata: %w", err)
	}

	return meta, nil
}

// LatestBackup returns the most recent completed backup, or nil if none
func (s *Store) LatestBackup() (*BackupMetadata, error) {
	query := `
		SELECT id, backup_type, timestamp, size_bytes, compressed, encrypted,
			checksum, tables, record_count, version, status
		FROM backup_metadata
		WHERE status = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	meta, err := scanBackupMetadata(s.db.QueryRow(query, BackupStatusCompleted))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest backup: %w", err)
	}

	return meta, nil
}

// ListBackups returns all recorded backups, newest first
func (s *Store) ListBackups() ([]*BackupMetadata, error) {
	query := `
		SELECT id, backup_type, timestamp, size_bytes, compressed, encrypted,
			checksum, tables, record_count, version, status
		FROM backup_metadata
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var backups []*BackupMetadata
	for rows.Next() {
		meta, err := scanBackupMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup metadata: %w", err)
		}
		backups = append(backups, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backups: %w", err)
	}

	return backups, nil
}

// PruneBackupMetadata removes metadata rows older than the given time and
// returns the ids of the pruned backups so payloads can be deleted too
func (s *Store) PruneBackupMetadata(olderThan time.Time) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM backup_metadata WHERE timestamp < ?", olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired backups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan backup id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired backups: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := s.db.Exec("DELETE FROM backup_metadata WHERE timestamp < ?", olderThan); err != nil {
		return nil, fmt.Errorf("failed to prune backup metadata: %w", err)
	}

	return ids, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBackupMetadata(row scanner) (*BackupMetadata, error) {
	var meta BackupMetadata
	var tablesJSON string

	err := row.Scan(&meta.ID, &meta.Type, &meta.Timestamp, &meta.SizeBytes,
		&meta.Compressed, &meta.Encrypted, &meta.Checksum, &tablesJSON,
		&meta.RecordCount, &meta.Version, &meta.Status)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tablesJSON), &meta.Tables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup tables: %w", err)
	}

	return &meta, nil
}

// UpsertTableStatistics replaces the statistics row for a table
func (s *Store) UpsertTableStatistics(stats *TableStatistics) error {
	query := `
		INSERT OR REPLACE INTO table_statistics (table_name, row_count, avg_row_size, index_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if stats.UpdatedAt.IsZero() {
		stats.UpdatedAt = time.Now()
	}

	_, err := s.db.Exec(query, stats.TableName, stats.RowCount, stats.AvgRowSize,
		stats.IndexCount, stats.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert table statistics: %w", err)
	}

	return nil
}

// GetTableStatistics returns the statistics row for a table, or nil
func (s *Store) GetTableStatistics(tableName string) (*TableStatistics, error) {
	query := `
		SELECT table_name, row_count, avg_row_size, index_count, updated_at
		FROM table_statistics
		WHERE table_name = ?
	`

	var stats TableStatistics
	err := s.db.QueryRow(query, tableName).Scan(&stats.TableName, &stats.RowCount,
		&stats.AvgRowSize, &stats.IndexCount, &stats.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get table statistics: %w", err)
	}

	return &stats, nil
}

// InsertSuggestion persists an optimization suggestion
func (s *Store) InsertSuggestion(suggestion *Suggestion) error {
	query := `
		INSERT INTO optimization_suggestions (suggestion_type, priority, message,
			suggested_sql, suggested_index, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if suggestion.Status == "" {
		suggestion.Status = SuggestionStatusPending
	}
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now()
	}

	result, err := s.db.Exec(query, suggestion.Type, suggestion.Priority, suggestion.Message,
		suggestion.SuggestedSQL, suggestion.SuggestedIndex, suggestion.Status, suggestion.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert suggestion: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get suggestion ID: %w", err)
	}
	suggestion.ID = id

	return nil
}

// SuggestionCounts returns the number of pending and applied suggestions
func (s *Store) SuggestionCounts() (pending, applied int64, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'applied' THEN 1 ELSE 0 END), 0)
		FROM optimization_suggestions
	`

	if err := s.db.QueryRow(query).Scan(&pending, &applied); err != nil {
		return 0, 0, fmt.Errorf("failed to count suggestions: %w", err)
	}

	return pending, applied, nil
}

// InsertSnapshot appends a performance snapshot
func (s *Store) InsertSnapshot(snapshot *PerformanceSnapshot) error {
	query := `
		INSERT INTO system_performance_snapshots (snapshot_type, total_queries,
			avg_query_time_ms, slow_queries, failed_queries, period_start, period_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query, snapshot.Type, snapshot.TotalQueries,
		snapshot.AvgQueryTime, snapshot.SlowQueries, snapshot.FailedQueries,
		snapshot.PeriodStart, snapshot.PeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot ID: %w", err)
	}
	snapshot.ID = id

	return nil
}
