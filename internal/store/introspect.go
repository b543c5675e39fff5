package store

import (
	"fmt"
	"strings"
	"time"
)

// ListUserTables enumerates application tables, excluding sqlite internals
// and the subsystem's own tables
func (s *Store) ListUserTables() ([]string, error) {
	query := `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	system := make(map[string]bool)
	for _, t := range SystemTables() {
		system[t] = true
	}

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if !system[name] {
			tables = append(tables, name)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// TableColumns returns the column names of a table in declaration order
func (s *Store) TableColumns(table string) ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return columns, nil
}

// ListIndexes enumerates non-autoindex indexes on user tables with their
// column tuples. Indexes on the subsystem's own tables are excluded.
func (s *Store) ListIndexes() ([]*IndexInfo, error) {
	system := SystemTables()
	placeholders := strings.Repeat("?,", len(system))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT name, tbl_name, sql LIKE 'CREATE UNIQUE%%' FROM sqlite_master
		WHERE type = 'index' AND name NOT LIKE 'sqlite_autoindex%%'
			AND tbl_name NOT IN (%s)
		ORDER BY name
	`, placeholders)

	args := make([]interface{}, len(system))
	for i, table := range system {
		args[i] = table
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer rows.Close()

	var indexes []*IndexInfo
	for rows.Next() {
		var idx IndexInfo
		if err := rows.Scan(&idx.Name, &idx.Table, &idx.Unique); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indexes = append(indexes, &idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}

	for _, idx := range indexes {
		columns, err := s.indexColumns(idx.Name)
		if err != nil {
			return nil, err
		}
		idx.Columns = columns
	}

	return indexes, nil
}

// indexColumns returns the column names of an index in key order
func (s *Store) indexColumns(indexName string) ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM pragma_index_info(?) ORDER BY seqno", indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for index %s: %w", indexName, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index column: %w", err)
		}
		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index columns: %w", err)
	}

	return columns, nil
}

// SchemaObjects exports the DDL of user tables, indexes, triggers and views
func (s *Store) SchemaObjects() ([]SchemaObject, error) {
	query := `
		SELECT type, name, tbl_name, sql FROM sqlite_master
		WHERE sql IS NOT NULL
			AND name NOT LIKE 'sqlite_%'
		ORDER BY CASE type WHEN 'table' THEN 0 WHEN 'index' THEN 1 WHEN 'trigger' THEN 2 ELSE 3 END, name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to export schema: %w", err)
	}
	defer rows.Close()

	system := make(map[string]bool)
	for _, t := range SystemTables() {
		system[t] = true
	}

	var objects []SchemaObject
	for rows.Next() {
		var obj SchemaObject
		if err := rows.Scan(&obj.Type, &obj.Name, &obj.Table, &obj.SQL); err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		// Skip the subsystem's own tables and anything attached to them
		if system[obj.Name] || system[obj.Table] {
			continue
		}
		objects = append(objects, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema objects: %w", err)
	}

	return objects, nil
}

// ExplainIndexes runs EXPLAIN QUERY PLAN and extracts the index names the
// planner reports. Best effort: failures yield an empty list, not an error.
func (s *Store) ExplainIndexes(query string, args ...interface{}) []string {
	rows, err := s.db.Query("EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var indexes []string
	seen := make(map[string]bool)
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return indexes
		}
		if name := indexNameFromPlanDetail(detail); name != "" && !seen[name] {
			seen[name] = true
			indexes = append(indexes, name)
		}
	}

	return indexes
}

// indexNameFromPlanDetail pulls the index name out of a query-plan detail
// line such as "SEARCH t USING INDEX idx_t_x (x=?)"
func indexNameFromPlanDetail(detail string) string {
	for _, marker := range []string{"USING COVERING INDEX ", "USING INDEX "} {
		if pos := strings.Index(detail, marker); pos >= 0 {
			rest := detail[pos+len(marker):]
			if end := strings.IndexAny(rest, " ("); end >= 0 {
				return rest[:end]
			}
			return rest
		}
	}
	return ""
}

// HasSystemTables reports which of the subsystem's tables are missing
func (s *Store) HasSystemTables() ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table'`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to check system tables: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	var missing []string
	for _, t := range SystemTables() {
		if !existing[t] {
			missing = append(missing, t)
		}
	}

	return missing, nil
}

// CheckIntegrity runs the engine integrity and foreign key checks
func (s *Store) CheckIntegrity() (*IntegrityResult, error) {
	result := &IntegrityResult{
		Healthy:   true,
		Problems:  []string{},
		CheckedAt: time.Now(),
	}

	var integrityCheck string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&integrityCheck); err != nil {
		return nil, fmt.Errorf("failed to run integrity check: %w", err)
	}

	if integrityCheck != "ok" {
		result.Healthy = false
		result.Problems = append(result.Problems, fmt.Sprintf("integrity_check: %s", integrityCheck))
	}

	rows, err := s.db.Query("PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		var rowid interface{}
		var parent string
		var fkid int
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key violation: %w", err)
		}
		result.Healthy = false
		result.Problems = append(result.Problems,
			fmt.Sprintf("foreign_key_check: %s references missing row in %s", table, parent))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign key violations: %w", err)
	}

	return result, nil
}

// Stats returns database size and system-table record counts
func (s *Store) Stats() (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	err := s.db.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").
		Scan(&stats.DatabaseSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to get database size: %w", err)
	}

	if err := s.db.QueryRow("PRAGMA freelist_count").Scan(&stats.FreelistPages); err != nil {
		return nil, fmt.Errorf("failed to get freelist count: %w", err)
	}

	queries := map[string]*int64{
		"SELECT COUNT(*) FROM query_performance_log":        &stats.QueryMetrics,
		"SELECT COUNT(*) FROM backup_metadata":              &stats.Backups,
		"SELECT COUNT(*) FROM optimization_suggestions":     &stats.Suggestions,
		"SELECT COUNT(*) FROM system_performance_snapshots": &stats.Snapshots,
	}

	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get record count: %w", err)
		}
	}

	return stats, nil
}

// CollectTableStatistics measures one table: exact row count, estimated
// average row size from the text rendering of every column, and index count
func (s *Store) CollectTableStatistics(table string) (*TableStatistics, error) {
	stats := &TableStatistics{TableName: table, UpdatedAt: time.Now()}

	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&stats.RowCount); err != nil {
		return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	if stats.RowCount > 0 {
		columns, err := s.TableColumns(table)
		if err != nil {
			return nil, err
		}
		terms := make([]string, len(columns))
		for i, col := range columns {
			terms[i] = fmt.Sprintf("LENGTH(COALESCE(CAST(%q AS TEXT), ''))", col)
		}
		query := fmt.Sprintf("SELECT COALESCE(AVG(%s), 0) FROM %q", strings.Join(terms, " + "), table)

		var avgSize float64
		if err := s.db.QueryRow(query).Scan(&avgSize); err != nil {
			return nil, fmt.Errorf("failed to estimate row size of %s: %w", table, err)
		}
		stats.AvgRowSize = int64(avgSize)
	}

	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_%'",
		table).Scan(&stats.IndexCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count indexes of %s: %w", table, err)
	}

	return stats, nil
}

// Analyze refreshes the engine's internal statistics
func (s *Store) Analyze() error {
	if _, err := s.db.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	return nil
}

// Vacuum reclaims space and defragments the database file
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
