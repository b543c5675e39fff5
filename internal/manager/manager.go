// Package manager orchestrates the optimizer, backup manager and store into
// high-level lifecycle, optimization, maintenance and recovery operations.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dbpulse/dbpulse/internal/backup"
	"github.com/dbpulse/dbpulse/internal/config"
	"github.com/dbpulse/dbpulse/internal/errors"
	"github.com/dbpulse/dbpulse/internal/logging"
	"github.com/dbpulse/dbpulse/internal/optimizer"
	"github.com/dbpulse/dbpulse/internal/store"
)

// Manager wires the subsystem together. Callers construct an explicit
// instance; there is no package-level singleton.
type Manager struct {
	store     *store.Store
	optimizer *optimizer.Optimizer
	backups   *backup.Manager
	logger    *logging.Logger
	cfg       *config.Config
	cron      *cron.Cron

	// serializes scheduled jobs against explicit operations
	opMu sync.Mutex
}

// New creates a manager over an opened store
func New(st *store.Store, cfg *config.Config, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	objects, err := backup.NewDirStore(cfg.Backup.Directory)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_DIRECTORY", "failed to prepare backup directory")
	}

	return &Manager{
		store:     st,
		optimizer: optimizer.New(st, cfg.Optimizer, logger),
		backups:   backup.NewManager(st, objects, cfg.Backup, logger),
		logger:    logger.WithComponent("manager"),
		cfg:       cfg,
		cron:      cron.New(),
	}, nil
}

// Store exposes the underlying store
func (m *Manager) Store() *store.Store { return m.store }

// Optimizer exposes the query optimizer
func (m *Manager) Optimizer() *optimizer.Optimizer { return m.optimizer }

// Backups exposes the backup manager
func (m *Manager) Backups() *backup.Manager { return m.backups }

// Initialize verifies the system tables, takes an initial full backup when
// none exists, and starts the background schedule when monitoring is
// enabled. Missing tables are reported, never created here; schema changes
// belong to migrations.
func (m *Manager) Initialize(ctx context.Context) error {
	missing, err := m.store.HasSystemTables()
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, "INIT_VERIFY", "failed to verify system tables")
	}
	if len(missing) > 0 {
		m.logger.Warn("System tables are missing", "tables", missing)
	}

	if m.cfg.Backup.Enabled {
		last, err := m.store.LatestBackup()
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeBackup, "INIT_BACKUP", "failed to read backup history")
		}
		if last == nil {
			if _, err := m.backups.CreateFullBackup(ctx); err != nil {
				// Initialization proceeds without the baseline backup
				m.logger.LogError(ctx, err, "Initial full backup failed")
			}
		}
	}

	if m.cfg.Monitoring.SnapshotsEnabled {
		if err := m.startSchedule(); err != nil {
			return err
		}
	}

	m.logger.Info("Database manager initialized",
		"backups_enabled", m.cfg.Backup.Enabled,
		"monitoring_enabled", m.cfg.Monitoring.SnapshotsEnabled)

	return nil
}

// startSchedule registers the recurring jobs: hourly snapshots, a daily
// maintenance run at 02:00, and an hourly backup cadence tick
func (m *Manager) startSchedule() error {
	jobs := []struct {
		expr string
		name string
		run  func(context.Context) error
	}{
		{"0 * * * *", "hourly snapshot", func(ctx context.Context) error {
			m.opMu.Lock()
			defer m.opMu.Unlock()
			return m.recordSnapshot(store.SnapshotHourly, time.Hour)
		}},
		{"0 2 * * *", "routine maintenance", func(ctx context.Context) error {
			_, err := m.PerformRoutineMaintenance(ctx)
			return err
		}},
		{"30 * * * *", "backup cadence", func(ctx context.Context) error {
			m.opMu.Lock()
			defer m.opMu.Unlock()
			_, err := m.backups.ScheduleAutomaticBackup(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		_, err := m.cron.AddFunc(job.expr, func() {
			if err := job.run(context.Background()); err != nil {
				m.logger.LogError(context.Background(), err, "Scheduled job failed", "job", job.name)
			}
		})
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeSystem, "SCHEDULE_JOB", "failed to schedule job").
				WithContext("job", job.name)
		}
	}

	m.cron.Start()
	m.logger.Info("Background schedule started", "jobs", len(jobs))
	return nil
}

// Close stops the schedule. The store is owned by the caller and closed
// separately.
func (m *Manager) Close() {
	if m.cron != nil {
		m.cron.Stop()
	}
	m.logger.Info("Database manager stopped")
}

// OptimizationSummary reports what a comprehensive optimization run did
type OptimizationSummary struct {
	IndexesCreated    int           `json:"indexes_created"`
	StatisticsUpdated int           `json:"statistics_updated"`
	BackupCompleted   bool          `json:"backup_completed"`
	SuggestionsTotal  int           `json:"suggestions_total"`
	Duration          time.Duration `json:"duration"`
}

// PerformComprehensiveOptimization applies auto-index suggestions, refreshes
// table statistics, runs the backup cadence, and persists high-priority
// suggestions from a fresh slow-query report. Individual step failures are
// logged and the remaining steps still run.
func (m *Manager) PerformComprehensiveOptimization(ctx context.Context) (*OptimizationSummary, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	m.logger.LogOperation(ctx, "comprehensive optimization")
	summary := &OptimizationSummary{}

	ddl, err := m.optimizer.SuggestAutoIndexes()
	if err != nil {
		return nil, err
	}
	for _, stmt := range ddl {
		if err := m.store.ExecDDL(stmt); err != nil {
			m.logger.LogError(ctx, err, "Failed to create suggested index", "ddl", stmt)
			continue
		}
		m.logger.Info("Created index", "ddl", stmt)
		summary.IndexesCreated++
	}

	updated, err := m.refreshStatistics()
	if err != nil {
		m.logger.LogError(ctx, err, "Statistics refresh failed")
	}
	summary.StatisticsUpdated = updated

	if meta, err := m.backups.ScheduleAutomaticBackup(ctx); err != nil {
		m.logger.LogError(ctx, err, "Scheduled backup failed during optimization")
	} else if meta != nil {
		summary.BackupCompleted = true
	}

	reports, err := m.optimizer.GenerateSlowQueryReport(7)
	if err != nil {
		m.logger.LogError(ctx, err, "Slow query report failed during optimization")
	}
	for _, report := range reports {
		for _, suggestion := range report.Suggestions {
			summary.SuggestionsTotal++
			if suggestion.Priority != store.PriorityHigh {
				continue
			}
			if err := m.store.InsertSuggestion(&suggestion); err != nil {
				m.logger.LogError(ctx, err, "Failed to persist suggestion", "query_id", report.QueryID)
			}
		}
	}

	summary.Duration = time.Since(start)
	m.logger.LogOperationSuccess(ctx, "comprehensive optimization", summary.Duration,
		"indexes_created", summary.IndexesCreated,
		"statistics_updated", summary.StatisticsUpdated,
		"backup_completed", summary.BackupCompleted,
		"suggestions", summary.SuggestionsTotal)

	return summary, nil
}

// refreshStatistics runs ANALYZE and upserts per-table statistics
func (m *Manager) refreshStatistics() (int, error) {
	if err := m.store.Analyze(); err != nil {
		return 0, errors.ErrStatisticsRefresh.WithCause(err)
	}

	tables, err := m.store.ListUserTables()
	if err != nil {
		return 0, errors.ErrStatisticsRefresh.WithCause(err)
	}

	updated := 0
	for _, table := range tables {
		stats, err := m.store.CollectTableStatistics(table)
		if err != nil {
			return updated, errors.ErrStatisticsRefresh.WithCause(err).WithContext("table", table)
		}
		if err := m.store.UpsertTableStatistics(stats); err != nil {
			return updated, errors.ErrStatisticsRefresh.WithCause(err).WithContext("table", table)
		}
		updated++
	}

	return updated, nil
}

// MaintenanceReport summarizes a routine maintenance run
type MaintenanceReport struct {
	MetricsPruned    int64                  `json:"metrics_pruned"`
	UnusedIndexes    []string               `json:"unused_indexes"`
	Integrity        *store.IntegrityResult `json:"integrity"`
	Vacuumed         bool                   `json:"vacuumed"`
	SnapshotRecorded bool                   `json:"snapshot_recorded"`
}

// PerformRoutineMaintenance prunes the query log, reports unused indexes
// (dropping is left to the operator), checks integrity, vacuums, and records
// a daily performance snapshot
func (m *Manager) PerformRoutineMaintenance(ctx context.Context) (*MaintenanceReport, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.logger.LogOperation(ctx, "routine maintenance")
	report := &MaintenanceReport{}

	cutoff := time.Now().AddDate(0, 0, -m.cfg.Optimizer.MetricRetentionDays)
	pruned, err := m.store.PruneQueryLog(cutoff)
	if err != nil {
		return nil, err
	}
	report.MetricsPruned = pruned

	usage, err := m.optimizer.AnalyzeIndexUsage(30)
	if err != nil {
		return nil, err
	}
	for _, idx := range usage {
		if idx.Unused {
			report.UnusedIndexes = append(report.UnusedIndexes, idx.Name)
		}
	}
	if len(report.UnusedIndexes) > 0 {
		m.logger.Warn("Unused indexes detected, consider dropping them",
			"indexes", report.UnusedIndexes)
	}

	integrity, err := m.store.CheckIntegrity()
	if err != nil {
		return nil, err
	}
	report.Integrity = integrity
	if !integrity.Healthy {
		m.logger.LogError(ctx, errors.ErrIntegrityCheck.WithContext("problems", integrity.Problems),
			"Integrity check reported problems")
	}

	if err := m.store.Vacuum(); err != nil {
		m.logger.LogError(ctx, err, "Vacuum failed")
	} else {
		report.Vacuumed = true
	}

	if err := m.recordSnapshot(store.SnapshotDaily, 24*time.Hour); err != nil {
		m.logger.LogError(ctx, err, "Failed to record daily snapshot")
	} else {
		report.SnapshotRecorded = true
	}

	m.logger.Info("Routine maintenance completed",
		"metrics_pruned", report.MetricsPruned,
		"unused_indexes", len(report.UnusedIndexes),
		"integrity_healthy", integrity.Healthy)

	return report, nil
}

// recordSnapshot aggregates the query log over the trailing period into a
// persisted performance snapshot
func (m *Manager) recordSnapshot(snapType store.SnapshotType, period time.Duration) error {
	end := time.Now()
	start := end.Add(-period)

	threshold := float64(m.cfg.Optimizer.SlowQueryThreshold) / float64(time.Millisecond)
	stats, err := m.store.QueryStatsSince(start, threshold)
	if err != nil {
		return err
	}

	return m.store.InsertSnapshot(&store.PerformanceSnapshot{
		Type:          snapType,
		TotalQueries:  stats.TotalQueries,
		AvgQueryTime:  stats.AvgQueryTime,
		SlowQueries:   stats.SlowQueries,
		FailedQueries: m.optimizer.FailedQueriesSince(start),
		PeriodStart:   start,
		PeriodEnd:     end,
	})
}

// EmergencyRecovery takes a safety backup of the current state, restores the
// requested backup with DropExisting, and verifies health afterwards
func (m *Manager) EmergencyRecovery(ctx context.Context, backupID string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.logger.LogOperation(ctx, "emergency recovery", "backup_id", backupID)

	if _, err := m.backups.CreateFullBackup(ctx); err != nil {
		return errors.WrapError(err, errors.ErrorTypeBackup, "RECOVERY_SAFETY",
			"failed to create safety backup before recovery")
	}

	if err := m.backups.RestoreFromBackup(ctx, backupID, backup.RestoreOptions{DropExisting: true}); err != nil {
		return err
	}

	health := m.SystemHealth(ctx)
	if health.Overall == HealthCritical {
		return errors.ErrRecoveryFailed.WithContext("backup_id", backupID)
	}

	m.logger.Info("Emergency recovery completed", "backup_id", backupID, "health", health.Overall)
	return nil
}
