package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpulse/dbpulse/internal/config"
	"github.com/dbpulse/dbpulse/internal/store"
)

func setupTestManager(t *testing.T) (*Manager, *store.Store, func()) {
	tmpDir, err := os.MkdirTemp("", "dbpulse_test_*")
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Global.DatabaseURL = filepath.Join(tmpDir, "test.db")
	cfg.Backup.Directory = filepath.Join(tmpDir, "backups")
	cfg.Monitoring.SnapshotsEnabled = false

	mgr, err := New(st, cfg, nil)
	require.NoError(t, err)

	cleanup := func() {
		mgr.Close()
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return mgr, st, cleanup
}

func seedOrders(t *testing.T, st *store.Store) {
	_, err := st.DB().Exec("CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, created_at TIMESTAMP, updated_at TIMESTAMP)")
	require.NoError(t, err)
	_, err = st.DB().Exec("INSERT INTO orders (user_id, created_at, updated_at) VALUES (1, ?, ?), (2, ?, ?)",
		time.Now(), time.Now(), time.Now(), time.Now())
	require.NoError(t, err)
}

func TestInitializeTakesInitialBackup(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)

	require.NoError(t, mgr.Initialize(context.Background()))

	latest, err := st.LatestBackup()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, store.BackupTypeFull, latest.Type)
}

func TestInitializeSkipsBackupWhenDisabled(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()
	mgr.cfg.Backup.Enabled = false

	seedOrders(t, st)

	require.NoError(t, mgr.Initialize(context.Background()))

	latest, err := st.LatestBackup()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestQuickHealthCheck(t *testing.T) {
	mgr, _, cleanup := setupTestManager(t)
	defer cleanup()

	assert.True(t, mgr.QuickHealthCheck(context.Background()))
}

func TestQuickHealthCheckClosedDatabase(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	st.Close()
	assert.False(t, mgr.QuickHealthCheck(context.Background()))
}

func TestSystemHealthFreshDatabase(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)
	_, err := mgr.Backups().CreateFullBackup(context.Background())
	require.NoError(t, err)

	status := mgr.SystemHealth(context.Background())
	require.NotNil(t, status)
	assert.Equal(t, HealthHealthy, status.Overall)
	assert.Len(t, status.Components, 4)
	for name, component := range status.Components {
		assert.Equal(t, HealthHealthy, component.Status, "component %s", name)
	}
}

func TestSystemHealthProbeFailureIsCritical(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	st.Close()

	status := mgr.SystemHealth(context.Background())
	require.NotNil(t, status)
	assert.Equal(t, HealthCritical, status.Overall)
	assert.Equal(t, HealthCritical, status.Components["database"].Status)
}

func TestSystemHealthMissingBackupIsCritical(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)

	// Backups enabled but none ever completed
	status := mgr.SystemHealth(context.Background())
	assert.Equal(t, HealthCritical, status.Overall)
	assert.Equal(t, HealthCritical, status.Components["backup"].Status)
}

func TestSystemHealthWarnsOnOverdueBackup(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)

	stale := &store.BackupMetadata{
		ID:        "full_old",
		Type:      store.BackupTypeFull,
		Timestamp: time.Now().Add(-48 * time.Hour),
		Tables:    []string{"orders"},
		Status:    store.BackupStatusCompleted,
	}
	require.NoError(t, st.InsertBackupMetadata(stale))

	status := mgr.SystemHealth(context.Background())
	assert.Equal(t, HealthWarning, status.Overall)
	assert.Equal(t, HealthWarning, status.Components["backup"].Status)
}

func TestSystemHealthWarnsOnLowCacheHitRate(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)
	_, err := mgr.Backups().CreateFullBackup(context.Background())
	require.NoError(t, err)

	// 10 recorded queries, none cache hits
	for i := 0; i < 10; i++ {
		require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
			QueryID: "q1", SQL: "SELECT 1", ExecutionTime: 5,
		}))
	}

	status := mgr.SystemHealth(context.Background())
	assert.Equal(t, HealthWarning, status.Overall)
	assert.Equal(t, HealthWarning, status.Components["cache"].Status)
}

func TestComprehensiveOptimization(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)

	// Enough slow filtered executions to trigger an auto-index
	for i := 0; i < 12; i++ {
		require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
			QueryID:       "q1",
			SQL:           "SELECT id FROM orders WHERE orders.user_id = 1",
			ExecutionTime: 200,
		}))
	}

	// Too infrequent for an auto-index, but slow enough for the report to
	// keep suggesting one
	for i := 0; i < 5; i++ {
		require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
			QueryID:       "q2",
			SQL:           "SELECT id FROM orders WHERE orders.created_at = '2020-01-01'",
			ExecutionTime: 1500,
		}))
	}

	summary, err := mgr.PerformComprehensiveOptimization(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.IndexesCreated)
	assert.Equal(t, 1, summary.StatisticsUpdated)
	assert.True(t, summary.BackupCompleted)
	assert.Greater(t, summary.SuggestionsTotal, 0)

	// The index now exists
	indexes, err := st.ListIndexes()
	require.NoError(t, err)
	var found bool
	for _, idx := range indexes {
		if idx.Name == "idx_orders_user_id" {
			found = true
		}
	}
	assert.True(t, found)

	// Statistics were refreshed
	stats, err := st.GetTableStatistics("orders")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(2), stats.RowCount)

	// High-priority suggestions were persisted
	pending, _, err := st.SuggestionCounts()
	require.NoError(t, err)
	assert.Greater(t, pending, int64(0))
}

func TestRoutineMaintenance(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)
	_, err := st.DB().Exec("CREATE INDEX idx_orders_user_id ON orders(user_id)")
	require.NoError(t, err)

	// One stale metric past retention, one current
	require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
		QueryID: "old", SQL: "SELECT 1", Timestamp: time.Now().AddDate(0, 0, -40),
	}))
	require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
		QueryID: "recent", SQL: "SELECT 2",
	}))

	report, err := mgr.PerformRoutineMaintenance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.MetricsPruned)
	assert.Contains(t, report.UnusedIndexes, "idx_orders_user_id")
	require.NotNil(t, report.Integrity)
	assert.True(t, report.Integrity.Healthy)
	assert.True(t, report.Vacuumed)
	assert.True(t, report.SnapshotRecorded)

	dbStats, err := st.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dbStats.Snapshots)
}

func TestEmergencyRecovery(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)

	meta, err := mgr.Backups().CreateFullBackup(context.Background())
	require.NoError(t, err)

	// Corrupt the table contents, then recover
	_, err = st.DB().Exec("DELETE FROM orders")
	require.NoError(t, err)

	require.NoError(t, mgr.EmergencyRecovery(context.Background(), meta.ID))

	rows, err := st.ExportTableRows("orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// The safety backup taken before the restore is also recorded
	backups, err := st.ListBackups()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(backups), 2)
}

func TestEmergencyRecoveryUnknownBackup(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	seedOrders(t, st)

	err := mgr.EmergencyRecovery(context.Background(), "missing")
	require.Error(t, err)
}

func TestRecordSnapshotAggregatesWindow(t *testing.T) {
	mgr, st, cleanup := setupTestManager(t)
	defer cleanup()

	require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
		QueryID: "q1", SQL: "SELECT 1", ExecutionTime: 1500,
	}))
	require.NoError(t, st.InsertQueryMetric(&store.QueryMetric{
		QueryID: "q2", SQL: "SELECT 2", ExecutionTime: 100,
	}))

	require.NoError(t, mgr.recordSnapshot(store.SnapshotHourly, time.Hour))

	dbStats, err := st.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dbStats.Snapshots)
}
