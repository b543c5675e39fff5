package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUsersTable(t *testing.T, st *Store) {
	_, err := st.DB().Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)
	`)
	require.NoError(t, err)
	_, err = st.DB().Exec("CREATE INDEX idx_users_email ON users(email)")
	require.NoError(t, err)
}

func TestListUserTablesExcludesSystemTables(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)

	tables, err := st.ListUserTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, tables)
}

func TestTableColumns(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)

	columns, err := st.TableColumns("users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "name", "created_at", "updated_at"}, columns)
}

func TestListIndexes(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)

	indexes, err := st.ListIndexes()
	require.NoError(t, err)

	var found *IndexInfo
	for _, idx := range indexes {
		if idx.Name == "idx_users_email" {
			found = idx
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "users", found.Table)
	assert.Equal(t, []string{"email"}, found.Columns)
	assert.False(t, found.Unique)
}

func TestSchemaObjectsSkipSystemTables(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)

	objects, err := st.SchemaObjects()
	require.NoError(t, err)

	names := make(map[string]string)
	for _, obj := range objects {
		names[obj.Name] = obj.Type
		for _, system := range SystemTables() {
			assert.NotEqual(t, system, obj.Name)
		}
	}
	assert.Equal(t, "table", names["users"])
	assert.Equal(t, "index", names["idx_users_email"])
}

func TestCheckIntegrityHealthy(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	result, err := st.CheckIntegrity()
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Problems)
	assert.False(t, result.CheckedAt.IsZero())
}

func TestCollectTableStatistics(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)
	_, err := st.DB().Exec("INSERT INTO users (email, name) VALUES ('a@example.com', 'Alice'), ('b@example.com', 'Bob')")
	require.NoError(t, err)

	stats, err := st.CollectTableStatistics("users")
	require.NoError(t, err)
	assert.Equal(t, "users", stats.TableName)
	assert.Equal(t, int64(2), stats.RowCount)
	assert.Equal(t, 1, stats.IndexCount)
	assert.Greater(t, stats.AvgRowSize, int64(0))
}

func TestDatabaseStats(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	require.NoError(t, st.InsertQueryMetric(&QueryMetric{QueryID: "q", SQL: "SELECT 1"}))

	stats, err := st.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.DatabaseSizeBytes, int64(0))
	assert.Equal(t, int64(1), stats.QueryMetrics)
}

func TestExportAndRestoreRoundTrip(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)
	_, err := st.DB().Exec("INSERT INTO users (id, email, name) VALUES (1, 'a@example.com', 'Alice')")
	require.NoError(t, err)

	rows, err := st.ExportTableRows("users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@example.com", rows[0]["email"])

	require.NoError(t, st.DropTable("users"))

	tables, err := st.ListUserTables()
	require.NoError(t, err)
	assert.Empty(t, tables)

	createUsersTable(t, st)
	require.NoError(t, st.RestoreTableData("users", rows))

	restored, err := st.ExportTableRows("users")
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "Alice", restored[0]["name"])
}

func TestExportTableRowsSince(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	createUsersTable(t, st)
	old := time.Now().AddDate(0, 0, -10)
	recent := time.Now()
	_, err := st.DB().Exec(
		"INSERT INTO users (id, email, created_at, updated_at) VALUES (1, 'old@example.com', ?, ?), (2, 'new@example.com', ?, ?)",
		old, old, recent, recent)
	require.NoError(t, err)

	rows, degraded, err := st.ExportTableRowsSince("users", time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, rows, 1)
	assert.Equal(t, "new@example.com", rows[0]["email"])
}

func TestExportTableRowsSinceDegradesToFullExport(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := st.DB().Exec("CREATE TABLE plain (id INTEGER PRIMARY KEY, value TEXT)")
	require.NoError(t, err)
	_, err = st.DB().Exec("INSERT INTO plain (value) VALUES ('a'), ('b')")
	require.NoError(t, err)

	rows, degraded, err := st.ExportTableRowsSince("plain", time.Now())
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Len(t, rows, 2)
}
