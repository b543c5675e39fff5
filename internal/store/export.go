package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Row is a generic exported table row. User tables have arbitrary shapes,
// so exports map column name to value; everything else in this package
// uses typed structs.
type Row map[string]interface{}

// ExportTableRows exports every row of a table
func (s *Store) ExportTableRows(table string) ([]Row, error) {
	// Table names come from sqlite_master, not caller input
	rows, err := s.db.Query(fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return nil, fmt.Errorf("failed to export table %s: %w", table, err)
	}
	defer rows.Close()

	return scanGenericRows(rows)
}

// ExportTableRowsSince exports rows changed since the given time, keyed by
// updated_at/created_at when present. Degraded fallbacks: created_at only,
// then a full table export when neither column exists.
func (s *Store) ExportTableRowsSince(table string, since time.Time) (result []Row, degradedFull bool, err error) {
	columns, err := s.TableColumns(table)
	if err != nil {
		return nil, false, err
	}

	hasUpdated := false
	hasCreated := false
	for _, col := range columns {
		switch col {
		case "updated_at":
			hasUpdated = true
		case "created_at":
			hasCreated = true
		}
	}

	var query string
	var args []interface{}
	switch {
	case hasUpdated && hasCreated:
		query = fmt.Sprintf("SELECT * FROM %q WHERE updated_at > ? OR created_at > ?", table)
		args = []interface{}{since, since}
	case hasUpdated:
		query = fmt.Sprintf("SELECT * FROM %q WHERE updated_at > ?", table)
		args = []interface{}{since}
	case hasCreated:
		query = fmt.Sprintf("SELECT * FROM %q WHERE created_at > ?", table)
		args = []interface{}{since}
	default:
		// No change-tracking columns: export the whole table
		all, err := s.ExportTableRows(table)
		return all, true, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to export changed rows of %s: %w", table, err)
	}
	defer rows.Close()

	result, err = scanGenericRows(rows)
	return result, false, err
}

func scanGenericRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get result columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// DropTable drops a table if it exists. Restore is the only caller.
func (s *Store) DropTable(table string) error {
	if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// ExecDDL executes a raw DDL statement captured from a schema export
func (s *Store) ExecDDL(ddl string) error {
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to execute DDL: %w", err)
	}
	return nil
}

// RestoreTableData inserts exported rows back into a table inside one
// transaction
func (s *Store) RestoreTableData(table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
		placeholders[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin restore transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare restore statement for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to restore row into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore of %s: %w", table, err)
	}

	return nil
}
