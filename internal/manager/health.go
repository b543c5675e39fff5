package manager

import (
	"context"
	"fmt"
	"time"
)

// HealthLevel is the severity of a health assessment
type HealthLevel string

const (
	HealthHealthy  HealthLevel = "healthy"
	HealthWarning  HealthLevel = "warning"
	HealthCritical HealthLevel = "critical"
)

// health thresholds
const (
	probeTimeout        = 1 * time.Second
	slowProbeLatency    = 1 * time.Second
	slowHourlyAvgMs     = 2000.0
	backupOverdueAfter  = 25 * time.Hour
	minCacheHitRate     = 0.5
	minIndexEfficiency  = 70.0
	healthMetricsWindow = 24 * time.Hour
)

// ComponentHealth is the assessment of one subsystem component
type ComponentHealth struct {
	Status  HealthLevel            `json:"status"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemHealthStatus is the aggregate health assessment
type SystemHealthStatus struct {
	Overall    HealthLevel                `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// SystemHealth assesses database responsiveness, backup recency, cache
// effectiveness and index efficiency. It always returns a status: any
// internal failure degrades to an all-critical result rather than an error.
func (m *Manager) SystemHealth(ctx context.Context) (status *SystemHealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Health check panicked", "panic", r)
			status = criticalStatus(fmt.Sprintf("health check failed: %v", r))
		}
	}()

	status = &SystemHealthStatus{
		Components: map[string]ComponentHealth{
			"database": m.checkDatabase(ctx),
			"backup":   m.checkBackup(),
			"cache":    m.checkCacheHitRate(),
			"indexes":  m.checkIndexEfficiency(),
		},
		CheckedAt: time.Now(),
	}

	status.Overall = HealthHealthy
	for _, component := range status.Components {
		switch component.Status {
		case HealthCritical:
			status.Overall = HealthCritical
		case HealthWarning:
			if status.Overall != HealthCritical {
				status.Overall = HealthWarning
			}
		}
	}

	return status
}

// QuickHealthCheck probes database connectivity with a one-second timeout
func (m *Manager) QuickHealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var one int
	if err := m.store.DB().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		m.logger.Warn("Quick health check failed", "error", err)
		return false
	}
	return one == 1
}

// checkDatabase probes connectivity and recent query latency. A failed
// probe is critical; a slow probe or a slow trailing-hour average is a
// warning.
func (m *Manager) checkDatabase(ctx context.Context) ComponentHealth {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	var one int
	if err := m.store.DB().QueryRowContext(probeCtx, "SELECT 1").Scan(&one); err != nil {
		return ComponentHealth{
			Status:  HealthCritical,
			Message: "database connectivity probe failed",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	latency := time.Since(start)

	details := map[string]interface{}{"probe_latency_ms": float64(latency) / float64(time.Millisecond)}

	if latency > slowProbeLatency {
		return ComponentHealth{Status: HealthWarning, Message: "database is responding slowly", Details: details}
	}

	threshold := float64(m.cfg.Optimizer.SlowQueryThreshold) / float64(time.Millisecond)
	stats, err := m.store.QueryStatsSince(time.Now().Add(-time.Hour), threshold)
	if err != nil {
		return ComponentHealth{
			Status:  HealthCritical,
			Message: "failed to read query statistics",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	details["avg_query_time_ms"] = stats.AvgQueryTime
	if stats.TotalQueries > 0 && stats.AvgQueryTime > slowHourlyAvgMs {
		return ComponentHealth{Status: HealthWarning, Message: "average query time is high", Details: details}
	}

	return ComponentHealth{Status: HealthHealthy, Message: "database is responsive", Details: details}
}

// checkBackup verifies a completed backup exists and is recent enough.
// No completed backup at all is critical; a stale one is a warning. The
// overdue window is 25 hours so a daily schedule has an hour of slack.
func (m *Manager) checkBackup() ComponentHealth {
	if !m.cfg.Backup.Enabled {
		return ComponentHealth{Status: HealthHealthy, Message: "automatic backups are disabled"}
	}

	last, err := m.store.LatestBackup()
	if err != nil {
		return ComponentHealth{
			Status:  HealthCritical,
			Message: "failed to read backup history",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	if last == nil {
		return ComponentHealth{Status: HealthCritical, Message: "no completed backup exists"}
	}

	age := time.Since(last.Timestamp)
	details := map[string]interface{}{
		"last_backup_id": last.ID,
		"age_hours":      age.Hours(),
	}
	if age > backupOverdueAfter {
		return ComponentHealth{Status: HealthWarning, Message: "last backup is overdue", Details: details}
	}

	return ComponentHealth{Status: HealthHealthy, Message: "backups are current", Details: details}
}

// checkCacheHitRate flags a low metrics-cache hit rate over the last day.
// No traffic means nothing to judge.
func (m *Manager) checkCacheHitRate() ComponentHealth {
	threshold := float64(m.cfg.Optimizer.SlowQueryThreshold) / float64(time.Millisecond)
	stats, err := m.store.QueryStatsSince(time.Now().Add(-healthMetricsWindow), threshold)
	if err != nil {
		return ComponentHealth{
			Status:  HealthCritical,
			Message: "failed to read query statistics",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	if stats.TotalQueries == 0 {
		return ComponentHealth{Status: HealthHealthy, Message: "no recent query traffic"}
	}

	details := map[string]interface{}{"cache_hit_rate": stats.CacheHitRate}
	if stats.CacheHitRate < minCacheHitRate {
		return ComponentHealth{Status: HealthWarning, Message: "cache hit rate is low", Details: details}
	}

	return ComponentHealth{Status: HealthHealthy, Message: "cache hit rate is acceptable", Details: details}
}

// checkIndexEfficiency flags a low average index effectiveness score.
// Databases without user indexes are not penalized.
func (m *Manager) checkIndexEfficiency() ComponentHealth {
	usage, err := m.optimizer.AnalyzeIndexUsage(30)
	if err != nil {
		return ComponentHealth{
			Status:  HealthCritical,
			Message: "failed to analyze index usage",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	if len(usage) == 0 {
		return ComponentHealth{Status: HealthHealthy, Message: "no user indexes to assess"}
	}

	var total float64
	for _, idx := range usage {
		total += idx.Effectiveness
	}
	avg := total / float64(len(usage))

	details := map[string]interface{}{
		"avg_effectiveness": avg,
		"indexes":           len(usage),
	}
	if avg < minIndexEfficiency {
		return ComponentHealth{Status: HealthWarning, Message: "index effectiveness is low", Details: details}
	}

	return ComponentHealth{Status: HealthHealthy, Message: "indexes are effective", Details: details}
}

func criticalStatus(message string) *SystemHealthStatus {
	component := ComponentHealth{Status: HealthCritical, Message: message}
	return &SystemHealthStatus{
		Overall: HealthCritical,
		Components: map[string]ComponentHealth{
			"database": component,
			"backup":   component,
			"cache":    component,
			"indexes":  component,
		},
		CheckedAt: time.Now(),
	}
}
