package optimizer

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

func setupTestOptimizer(t *testing.T) (*Optimizer, *store.Store, func()) {
	tmpDir, err := os.MkdirTemp("", "dbpulse_test_*")
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)

	cfg := config.OptimizerConfig{
		SlowQueryThreshold:  time.Second,
		MetricsCacheTTL:     5 * time.Minute,
		MetricRetentionDays: 30,
	}
	opt := New(st, cfg, nil)

	cleanup := func() {
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return opt, st, cleanup
}

func TestExecuteWithMetricsRecordsMetric(t *testing.T) {
	opt, st, cleanup := setupTestOptimizer(t)
	defer cleanup()

	_, err := st.DB().Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = st.DB().Exec("INSERT INTO users (name) VALUES ('Alice'), ('Bob')")
	require.NoError(t, err)

	result, err := opt.ExecuteWithMetrics(context.Background(), "SELECT id, name FROM users", nil, ExecOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Metric)

	assert.Len(t, result.Rows, 2)
	assert.Equal(t, 2, result.Metric.RowsReturned)
	assert.Equal(t, 20, result.Metric.RowsScanned) // no WHERE, x10 estimate
	assert.False(t, result.Metric.CacheHit)
	assert.NotEmpty(t, result.Metric.QueryID)
	assert.GreaterOrEqual(t, result.Metric.ExecutionTime, 0.0)

	// The metric is persisted to the query log
	metrics, err := st.MetricsSince(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, result.Metric.QueryID, metrics[0].QueryID)
}

func TestExecuteWithMetricsScannedRowsEstimateWithWhere(t *testing.T) {
	opt, st, cleanup := setupTestOptimizer(t)
	defer cleanup()

	_, err := st.DB().Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = st.DB().Exec("INSERT INTO users (name) VALUES ('Alice'), ('Bob')")
	require.NoError(t, err)

	result, err := opt.ExecuteWithMetrics(context.Background(),
		"SELECT id FROM users WHERE name = ?", []interface{}{"Alice"}, ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metric.RowsReturned)
	assert.Equal(t, 2, result.Metric.RowsScanned) // WHERE present, x2 estimate
}

func TestExecuteWithMetricsWriteStatement(t *testing.T) {
	opt, st, cleanup := setupTestOptimizer(t)
	defer cleanup()

	_, err := st.DB().Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	result, err := opt.ExecuteWithMetrics(context.Background(),
		"INSERT INTO users (name) VALUES (?)", []interface{}{"Alice"}, ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsAffected)
	assert.Empty(t, result.Rows)
}

func TestExecuteWithMetricsCacheHitSkipsExecution(t *testing.T) {
	opt, st, cleanup := setupTestOptimizer(t)
	defer cleanup()

	_, err := st.DB().Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = st.DB().Exec("INSERT INTO users (name) VALUES ('Alice')")
	require.NoError(t, err)

	opts := ExecOptions{CacheKey: "users-all"}

	first, err := opt.ExecuteWithMetrics(context.Background(), "SELECT id FROM users", nil, opts)
	require.NoError(t, err)
	assert.False(t, first.Metric.CacheHit)
	assert.Len(t, first.Rows, 1)

	second, err := opt.ExecuteWithMetrics(context.Background(), "SELECT id FROM users", nil, opts)
	require.NoError(t, err)
	assert.True(t, second.Metric.CacheHit)
	assert.Nil(t, second.Rows) // metrics-caching, not result-caching

	stats, err := st.QueryStatsSince(time.Now().Add(-time.Minute), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestExecuteWithMetricsCacheExpires(t *testing.T) {
	opt, st, cleanup := setupTestOptimizer(t)
	defer cleanup()
	opt.cfg.MetricsCacheTTL = time.Nanosecond

	_, err := st.DB().Exec("CREATE TABLE users (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	opts := ExecOptions{CacheKey: "users-all"}
	_, err = opt.ExecuteWithMetrics(context.Background(), "SELECT id FROM users", nil, opts)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	second, err := opt.ExecuteWithMetrics(context.Background(), "SELECT id FROM users", nil, opts)
	require.NoError(t, err)
	assert.False(t, second.Metric.CacheHit)
}

func TestExecuteWithMetricsFailureTracked(t *testing.T) {
	opt, _, cleanup := setupTestOptimizer(t)
	defer cleanup()

	before := time.Now().Add(-time.Second)

	_, err := opt.ExecuteWithMetrics(context.Background(), "SELECT * FROM no_such_table", nil, ExecOptions{})
	require.Error(t, err)

	assert.Equal(t, int64(1), opt.FailedQueriesSince(before))
	assert.Equal(t, int64(0), opt.FailedQueriesSince(time.Now()))
}

func TestAnalyzeAndOptimizeQueryUsesLiveIndexes(t *testing.T) {
	opt, st, cleanup := setupTestOptimizer(t)
	defer cleanup()

	_, err := st.DB().Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)")
	require.NoError(t, err)

	suggestions, err := opt.AnalyzeAndOptimizeQuery("SELECT id FROM users WHERE users.email = 'a@example.com' LIMIT 1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "idx_users_email", suggestions[0].SuggestedIndex)

	_, err = st.DB().Exec("CREATE INDEX idx_users_email ON users(email)")
	require.NoError(t, err)

	suggestions, err = opt.AnalyzeAndOptimizeQuery("SELECT id FROM users WHERE users.email = 'a@example.com' LIMIT 1")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
