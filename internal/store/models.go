package store

import "time"

// QueryMetric is a single instrumented query execution. Rows are append-only
// and pruned by age during routine maintenance.
type QueryMetric struct {
	ID            int64     `json:"id"`
	QueryID       string    `json:"query_id"`
	SQL           string    `json:"sql"`
	ExecutionTime float64   `json:"execution_time_ms"`
	RowsReturned  int       `json:"rows_returned"`
	RowsScanned   int       `json:"rows_scanned"` // estimated, not exact
	IndexesUsed   []string  `json:"indexes_used"`
	CacheHit      bool      `json:"cache_hit"`
	Timestamp     time.Time `json:"timestamp"`
}

// BackupStatus represents the recorded state of a backup
type BackupStatus string

const (
	BackupStatusCompleted BackupStatus = "completed"
)

// BackupType distinguishes full from incremental backups
type BackupType string

const (
	BackupTypeFull        BackupType = "full"
	BackupTypeIncremental BackupType = "incremental"
)

// BackupMetadata describes a completed backup. A failed backup never
// produces a metadata row.
type BackupMetadata struct {
	ID          string       `json:"id"`
	Type        BackupType   `json:"type"`
	Timestamp   time.Time    `json:"timestamp"`
	SizeBytes   int64        `json:"size_bytes"`
	Compressed  bool         `json:"compressed"`
	Encrypted   bool         `json:"encrypted"`
	Checksum    string       `json:"checksum"` // SHA-256 hex of the serialized payload
	Tables      []string     `json:"tables"`
	RecordCount int64        `json:"record_count"`
	Version     string       `json:"version"`
	Status      BackupStatus `json:"status"`
}

// TableStatistics holds refreshed per-table statistics. Superseded on each
// refresh, not versioned.
type TableStatistics struct {
	TableName  string    `json:"table_name"`
	RowCount   int64     `json:"row_count"`
	AvgRowSize int64     `json:"avg_row_size"` // estimated
	IndexCount int       `json:"index_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SuggestionType categorizes optimization suggestions
type SuggestionType string

const (
	SuggestionTypeIndex     SuggestionType = "index"
	SuggestionTypeRewrite   SuggestionType = "rewrite"
	SuggestionTypeCache     SuggestionType = "cache"
	SuggestionTypePartition SuggestionType = "partition"
)

// SuggestionPriority ranks optimization suggestions
type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
	PriorityLow    SuggestionPriority = "low"
)

// SuggestionStatus is the lifecycle state of a persisted suggestion
type SuggestionStatus string

const (
	SuggestionStatusPending SuggestionStatus = "pending"
	SuggestionStatusApplied SuggestionStatus = "applied"
)

// Suggestion is an advisory optimization recommendation. Only high-priority
// suggestions found during comprehensive optimization are persisted.
type Suggestion struct {
	ID             int64              `json:"id,omitempty"`
	Type           SuggestionType     `json:"type"`
	Priority       SuggestionPriority `json:"priority"`
	Message        string             `json:"message"`
	SuggestedSQL   string             `json:"suggested_sql,omitempty"`
	SuggestedIndex string             `json:"suggested_index,omitempty"`
	Status         SuggestionStatus   `json:"status,omitempty"`
	CreatedAt      time.Time          `json:"created_at,omitempty"`
}

// SnapshotType distinguishes periodic snapshot granularity
type SnapshotType string

const (
	SnapshotHourly SnapshotType = "hourly"
	SnapshotDaily  SnapshotType = "daily"
)

// PerformanceSnapshot is an aggregate of the query log over a period.
// Append-only.
type PerformanceSnapshot struct {
	ID            int64        `json:"id"`
	Type          SnapshotType `json:"type"`
	TotalQueries  int64        `json:"total_queries"`
	AvgQueryTime  float64      `json:"avg_query_time_ms"`
	SlowQueries   int64        `json:"slow_queries"`
	FailedQueries int64        `json:"failed_queries"`
	PeriodStart   time.Time    `json:"period_start"`
	PeriodEnd     time.Time    `json:"period_end"`
}

// QueryStats aggregates the query log over a window
type QueryStats struct {
	TotalQueries int64   `json:"total_queries"`
	AvgQueryTime float64 `json:"avg_query_time_ms"`
	SlowQueries  int64   `json:"slow_queries"`
	CacheHits    int64   `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"` // 0..1
}

// SlowQueryGroup aggregates executions of one normalized query
type SlowQueryGroup struct {
	QueryID         string  `json:"query_id"`
	SQL             string  `json:"sql"`
	TotalExecutions int64   `json:"total_executions"`
	AvgTime         float64 `json:"avg_time_ms"`
	MaxTime         float64 `json:"max_time_ms"`
}

// IndexInfo describes an index discovered via introspection
type IndexInfo struct {
	Name    string   `json:"name"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// SchemaObject is a DDL statement captured from the schema catalog
type SchemaObject struct {
	Type  string `json:"type"` // table, index, trigger, view
	Name  string `json:"name"`
	Table string `json:"table"`
	SQL   string `json:"sql"`
}

// IntegrityResult contains the outcome of an integrity check
type IntegrityResult struct {
	Healthy   bool      `json:"healthy"`
	Problems  []string  `json:"problems"`
	CheckedAt time.Time `json:"checked_at"`
}

// DatabaseStats contains database size and system-table record counts
type DatabaseStats struct {
	DatabaseSizeBytes int64 `json:"database_size_bytes"`
	FreelistPages     int64 `json:"freelist_pages"`
	QueryMetrics      int64 `json:"query_metrics"`
	Backups           int64 `json:"backups"`
	Suggestions       int64 `json:"suggestions"`
	Snapshots         int64 `json:"snapshots"`
}
