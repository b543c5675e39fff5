// Package optimizer instruments query execution, persists performance
// metrics, and produces heuristic optimization suggestions from SQL text
// and historical access patterns.
package optimizer

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/dbpulse/dbpulse/internal/config"
	"github.com/dbpulse/dbpulse/internal/logging"
	"github.com/dbpulse/dbpulse/internal/store"
)

// ExecOptions controls a single instrumented execution
type ExecOptions struct {
	// QueryID overrides the digest-derived query identifier
	QueryID string
	// CacheKey enables the metrics cache for this call. A hit within the
	// TTL returns the cached metric only and skips execution entirely:
	// this is metrics-caching, not result-caching. Callers that need
	// current rows must call without a cache key.
	CacheKey string
}

// ExecResult is the outcome of an instrumented execution. Rows is nil on a
// metrics-cache hit.
type ExecResult struct {
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	RowsAffected int64                    `json:"rows_affected"`
	Metric       *store.QueryMetric       `json:"metric"`
}

type cachedMetric struct {
	metric   *store.QueryMetric
	cachedAt time.Time
}

// Optimizer wraps statement execution with timing and row-count capture
// and analyzes the accumulated query log
type Optimizer struct {
	store  *store.Store
	logger *logging.Logger
	cfg    config.OptimizerConfig

	// metrics cache, evicted lazily on lookup
	mu       sync.Mutex
	cache    map[string]cachedMetric
	failures []time.Time
}

// New creates a query optimizer over the given store
func New(st *store.Store, cfg config.OptimizerConfig, logger *logging.Logger) *Optimizer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Optimizer{
		store:  st,
		logger: logger.WithComponent("optimizer"),
		cfg:    cfg,
		cache:  make(map[string]cachedMetric),
	}
}

// ExecuteWithMetrics executes a statement and records a performance metric.
// Execution errors propagate; metric persistence failures never do.
func (o *Optimizer) ExecuteWithMetrics(ctx context.Context, sqlText string, args []interface{}, opts ExecOptions) (*ExecResult, error) {
	queryID := opts.QueryID
	if queryID == "" {
		queryID = QueryDigest(sqlText)
	}

	if opts.CacheKey != "" {
		if metric, ok := o.cachedMetric(opts.CacheKey); ok {
			hit := *metric
			hit.CacheHit = true
			o.logMetric(ctx, &hit)
			return &ExecResult{Metric: &hit}, nil
		}
	}

	hasWhere := strings.Contains(strings.ToLower(sqlText), " where ")

	start := time.Now()
	result, execErr := o.run(ctx, sqlText, args)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if execErr != nil {
		o.recordFailure()
		return nil, execErr
	}

	// Scanned-row estimate: no real plan cardinality is available, so
	// assume the engine touched twice the returned rows when filtered and
	// ten times otherwise
	rowsScanned := len(result.Rows) * 10
	if hasWhere {
		rowsScanned = len(result.Rows) * 2
	}

	metric := &store.QueryMetric{
		QueryID:       queryID,
		SQL:           sqlText,
		ExecutionTime: elapsed,
		RowsReturned:  len(result.Rows),
		RowsScanned:   rowsScanned,
		IndexesUsed:   o.explainIndexes(sqlText, args),
		CacheHit:      false,
		Timestamp:     time.Now(),
	}
	result.Metric = metric

	o.logMetric(ctx, metric)

	if opts.CacheKey != "" {
		o.mu.Lock()
		o.cache[opts.CacheKey] = cachedMetric{metric: metric, cachedAt: time.Now()}
		o.mu.Unlock()
	}

	if elapsed > o.thresholdMs() {
		o.handleSlowQuery(ctx, metric)
	}

	return result, nil
}

// run executes the statement, choosing Query for row-returning statements
// and Exec for everything else
func (o *Optimizer) run(ctx context.Context, sqlText string, args []interface{}) (*ExecResult, error) {
	if returnsRows(sqlText) {
		rows, err := o.store.DB().QueryContext(ctx, sqlText, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		scanned, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Rows: scanned}, nil
	}

	res, err := o.store.DB().ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected() // nolint:errcheck
	return &ExecResult{RowsAffected: affected}, nil
}

func returnsRows(sqlText string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(sqlText))
	for _, prefix := range []string{"select", "with", "pragma", "explain"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// scanRows maps a generic result set into one map per row, rejecting
// unknown column shapes at the boundary
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// cachedMetric looks up the metrics cache, evicting expired entries lazily
func (o *Optimizer) cachedMetric(key string) (*store.QueryMetric, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.cache[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.cachedAt) > o.cfg.MetricsCacheTTL {
		delete(o.cache, key)
		return nil, false
	}
	return entry.metric, true
}

// logMetric persists a metric row. Best-effort: failures are logged and
// swallowed so metrics collection never fails the caller's query.
func (o *Optimizer) logMetric(ctx context.Context, metric *store.QueryMetric) {
	record := *metric
	if err := o.store.InsertQueryMetric(&record); err != nil {
		o.logger.Warn("Failed to persist query metric", "query_id", metric.QueryID, "error", err)
		return
	}
	metric.ID = record.ID
}

// explainIndexes extracts used index names from the query plan. Failures
// yield an empty list, not an error.
func (o *Optimizer) explainIndexes(sqlText string, args []interface{}) []string {
	if !returnsRows(sqlText) {
		return nil
	}
	return o.store.ExplainIndexes(sqlText, args...)
}

// handleSlowQuery logs the slow execution and runs a synchronous advisory
// analysis. Logging only: the caller's result is never blocked or rejected.
func (o *Optimizer) handleSlowQuery(ctx context.Context, metric *store.QueryMetric) {
	o.logger.LogSlowQuery(ctx, metric.QueryID, metric.ExecutionTime, o.thresholdMs())

	suggestions, err := o.AnalyzeAndOptimizeQuery(metric.SQL)
	if err != nil {
		o.logger.Warn("Slow query analysis failed", "query_id", metric.QueryID, "error", err)
		return
	}
	for _, s := range suggestions {
		o.logger.Info("Optimization suggestion for slow query",
			"query_id", metric.QueryID,
			"type", s.Type,
			"priority", s.Priority,
			"message", s.Message)
	}
}

func (o *Optimizer) thresholdMs() float64 {
	return float64(o.cfg.SlowQueryThreshold.Milliseconds())
}

// recordFailure tracks a failed execution for snapshot aggregation
func (o *Optimizer) recordFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, time.Now())
	// Drop entries older than a day so the slice cannot grow unbounded
	cutoff := time.Now().Add(-24 * time.Hour)
	trimmed := o.failures[:0]
	for _, t := range o.failures {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	o.failures = trimmed
}

// FailedQueriesSince counts executions that failed after the given time.
// Failures are process-local: the query log records successes only.
func (o *Optimizer) FailedQueriesSince(since time.Time) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var n int64
	for _, t := range o.failures {
		if t.After(since) {
			n++
		}
	}
	return n
}

// AnalyzeAndOptimizeQuery runs the heuristic analyzer against the current
// index set. Suggestions are advisory: the caller's SQL is never altered.
func (o *Optimizer) AnalyzeAndOptimizeQuery(sqlText string) ([]store.Suggestion, error) {
	indexes, err := o.store.ListIndexes()
	if err != nil {
		return nil, err
	}

	tableRows, err := o.tableRowCounts()
	if err != nil {
		return nil, err
	}

	analyzer := NewHeuristicAnalyzer(indexes, tableRows)
	return analyzer.AnalyzeQuery(sqlText), nil
}

// tableRowCounts reads refreshed statistics for cardinality estimates
func (o *Optimizer) tableRowCounts() (map[string]int64, error) {
	tables, err := o.store.ListUserTables()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		stats, err := o.store.GetTableStatistics(table)
		if err != nil {
			return nil, err
		}
		if stats != nil {
			counts[table] = stats.RowCount
		}
	}
	return counts, nil
}
