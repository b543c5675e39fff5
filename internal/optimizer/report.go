package optimizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dbpulse/dbpulse/internal/store"
)

// slowQueryReportLimit caps the number of reports returned
const slowQueryReportLimit = 20

// SlowQueryReport aggregates executions of one query with fresh analysis
type SlowQueryReport struct {
	QueryID         string             `json:"query_id"`
	SQL             string             `json:"sql"`
	TotalExecutions int64              `json:"total_executions"`
	AvgTime         float64            `json:"avg_time_ms"`
	MaxTime         float64            `json:"max_time_ms"`
	Suggestions     []store.Suggestion `json:"suggestions"`
}

// IndexUsageReport scores one index by historical usage
type IndexUsageReport struct {
	Name          string  `json:"name"`
	Table         string  `json:"table"`
	UsageCount    int64   `json:"usage_count"`
	AvgTime       float64 `json:"avg_time_ms"`
	Effectiveness float64 `json:"effectiveness"` // 0..100
	Unused        bool    `json:"unused"`        // candidate for removal, never automatic
}

// DashboardData summarizes recent performance for operators
type DashboardData struct {
	AvgQueryTime   float64                 `json:"avg_query_time_ms"`
	SlowQueries    int64                   `json:"slow_queries"`
	CacheHitRate   float64                 `json:"cache_hit_rate"`
	TopSlowQueries []*store.SlowQueryGroup `json:"top_slow_queries"`
}

// GenerateSlowQueryReport groups the query log over the trailing window and
// re-analyzes each distinct query. Returns at most 20 reports ordered by
// average time then frequency, both descending.
func (o *Optimizer) GenerateSlowQueryReport(days int) ([]*SlowQueryReport, error) {
	since := time.Now().AddDate(0, 0, -days)

	groups, err := o.store.SlowQueryGroupsSince(since, slowQueryReportLimit)
	if err != nil {
		return nil, err
	}

	reports := make([]*SlowQueryReport, 0, len(groups))
	for _, g := range groups {
		suggestions, err := o.AnalyzeAndOptimizeQuery(g.SQL)
		if err != nil {
			return nil, err
		}
		reports = append(reports, &SlowQueryReport{
			QueryID:         g.QueryID,
			SQL:             g.SQL,
			TotalExecutions: g.TotalExecutions,
			AvgTime:         g.AvgTime,
			MaxTime:         g.MaxTime,
			Suggestions:     suggestions,
		})
	}

	return reports, nil
}

// AnalyzeIndexUsage cross-references every non-autoindex index against the
// query log and computes an effectiveness score, sorted descending
func (o *Optimizer) AnalyzeIndexUsage(days int) ([]*IndexUsageReport, error) {
	indexes, err := o.store.ListIndexes()
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)
	metrics, err := o.store.MetricsSince(since)
	if err != nil {
		return nil, err
	}

	reports := make([]*IndexUsageReport, 0, len(indexes))
	for _, idx := range indexes {
		var usageCount int64
		var totalTime float64
		for _, m := range metrics {
			for _, used := range m.IndexesUsed {
				if strings.Contains(used, idx.Name) {
					usageCount++
					totalTime += m.ExecutionTime
					break
				}
			}
		}

		var avgTime float64
		if usageCount > 0 {
			avgTime = totalTime / float64(usageCount)
		}

		reports = append(reports, &IndexUsageReport{
			Name:          idx.Name,
			Table:         idx.Table,
			UsageCount:    usageCount,
			AvgTime:       avgTime,
			Effectiveness: effectivenessScore(usageCount, avgTime),
			Unused:        usageCount == 0,
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Effectiveness > reports[j].Effectiveness
	})

	return reports, nil
}

// effectivenessScore combines usage frequency and average execution time
// into a 0-100 heuristic: min(usage/100*50, 50) + max(50 - avgMs/100, 0)
func effectivenessScore(usageCount int64, avgTimeMs float64) float64 {
	usage := float64(usageCount) / 100 * 50
	if usage > 50 {
		usage = 50
	}

	speed := 50 - avgTimeMs/100
	if speed < 0 {
		speed = 0
	}

	score := usage + speed
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// auto-index mining thresholds
const (
	autoIndexWhereMinCount = 10
	autoIndexWhereMinAvgMs = 100
	autoIndexJoinMinCount  = 5
	autoIndexJoinMinAvgMs  = 200
)

type columnAccess struct {
	count     int64
	totalTime float64
}

// SuggestAutoIndexes mines the 30-day query log for frequently filtered or
// joined columns and emits idempotent CREATE INDEX statements
func (o *Optimizer) SuggestAutoIndexes() ([]string, error) {
	since := time.Now().AddDate(0, 0, -30)
	metrics, err := o.store.MetricsSince(since)
	if err != nil {
		return nil, err
	}

	whereAccess := make(map[tableColumn]*columnAccess)
	joinAccess := make(map[tableColumn]*columnAccess)
	for _, m := range metrics {
		lowered := strings.ToLower(m.SQL)
		for _, tc := range extractWhereColumns(lowered) {
			acc := whereAccess[tc]
			if acc == nil {
				acc = &columnAccess{}
				whereAccess[tc] = acc
			}
			acc.count++
			acc.totalTime += m.ExecutionTime
		}
		for _, tc := range extractJoinColumns(lowered) {
			acc := joinAccess[tc]
			if acc == nil {
				acc = &columnAccess{}
				joinAccess[tc] = acc
			}
			acc.count++
			acc.totalTime += m.ExecutionTime
		}
	}

	indexes, err := o.store.ListIndexes()
	if err != nil {
		return nil, err
	}
	analyzer := &heuristicAnalyzer{indexes: indexes}

	var ddl []string
	emitted := make(map[tableColumn]bool)

	emit := func(access map[tableColumn]*columnAccess, minCount int64, minAvgMs float64) {
		for tc, acc := range access {
			if acc.count < minCount || acc.totalTime/float64(acc.count) <= minAvgMs {
				continue
			}
			if emitted[tc] || analyzer.hasIndexOn(tc.table, tc.column) {
				continue
			}
			emitted[tc] = true
			ddl = append(ddl, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
				indexName(tc.table, []string{tc.column}), tc.table, tc.column))
		}
	}

	emit(whereAccess, autoIndexWhereMinCount, autoIndexWhereMinAvgMs)
	emit(joinAccess, autoIndexJoinMinCount, autoIndexJoinMinAvgMs)

	sort.Strings(ddl)
	return ddl, nil
}

// GetPerformanceDashboardData summarizes the last 24 hours of the query log
func (o *Optimizer) GetPerformanceDashboardData() (*DashboardData, error) {
	since := time.Now().Add(-24 * time.Hour)

	stats, err := o.store.QueryStatsSince(since, o.thresholdMs())
	if err != nil {
		return nil, err
	}

	top, err := o.store.SlowQueryGroupsSince(since, 5)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		AvgQueryTime:   stats.AvgQueryTime,
		SlowQueries:    stats.SlowQueries,
		CacheHitRate:   stats.CacheHitRate,
		TopSlowQueries: top,
	}, nil
}
