package optimizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/dbpulse/dbpulse/internal/store"
)

// QueryAnalyzer produces advisory optimization suggestions from SQL text.
// Implementations are heuristic pattern matchers, not SQL parsers: suggestions
// are advisory only and must never drive correctness-critical decisions.
type QueryAnalyzer interface {
	AnalyzeQuery(sql string) []store.Suggestion
}

var (
	selectStarRe = regexp.MustCompile(`select\s+\*`)
	whereCondRe  = regexp.MustCompile(`([a-z_][a-z0-9_]*)\.([a-z_][a-z0-9_]*)\s*=`)
	joinRe       = regexp.MustCompile(`join\s+([a-z_][a-z0-9_]*)(?:\s+as\s+[a-z_][a-z0-9_]*)?\s+on\s+([a-z_][a-z0-9_]*)\.([a-z_][a-z0-9_]*)\s*=\s*([a-z_][a-z0-9_]*)\.([a-z_][a-z0-9_]*)`)
	orderByRe    = regexp.MustCompile(`order\s+by\s+([a-z0-9_.,\s]+?)(?:\s+limit\b|$)`)
	orderColRe   = regexp.MustCompile(`([a-z_][a-z0-9_]*)\.([a-z_][a-z0-9_]*)`)
	limitRe      = regexp.MustCompile(`\blimit\s+\d+`)
	inSelectRe   = regexp.MustCompile(`\bin\s*\(\s*select\b`)
	fromTableRe  = regexp.MustCompile(`\bfrom\s+([a-z_][a-z0-9_]*)`)
)

// heuristicAnalyzer inspects lower-cased SQL text with regular expressions.
// Multi-statement or dialect-specific SQL may produce wrong or missing
// suggestions.
type heuristicAnalyzer struct {
	indexes   []*store.IndexInfo
	tableRows map[string]int64
}

// NewHeuristicAnalyzer builds an analyzer over the current index set and
// per-table row counts
func NewHeuristicAnalyzer(indexes []*store.IndexInfo, tableRows map[string]int64) QueryAnalyzer {
	return &heuristicAnalyzer{indexes: indexes, tableRows: tableRows}
}

// AnalyzeQuery applies the suggestion rules to a single statement
func (a *heuristicAnalyzer) AnalyzeQuery(sql string) []store.Suggestion {
	lowered := strings.ToLower(sql)
	var suggestions []store.Suggestion

	if selectStarRe.MatchString(lowered) {
		suggestions = append(suggestions, store.Suggestion{
			Type:     store.SuggestionTypeRewrite,
			Priority: store.PriorityMedium,
			Message:  "SELECT * fetches every column; select only the columns you need",
		})
	}

	for _, tc := range extractWhereColumns(lowered) {
		if a.hasIndexOn(tc.table, tc.column) {
			continue
		}
		suggestions = append(suggestions, a.indexSuggestion(tc.table, tc.column,
			fmt.Sprintf("Equality filter on %s.%s has no covering index", tc.table, tc.column),
			store.PriorityHigh))
	}

	for _, tc := range extractJoinColumns(lowered) {
		if a.hasIndexOn(tc.table, tc.column) {
			continue
		}
		suggestions = append(suggestions, a.indexSuggestion(tc.table, tc.column,
			fmt.Sprintf("Join condition on %s.%s has no covering index", tc.table, tc.column),
			store.PriorityHigh))
	}

	if table, columns := extractOrderByColumns(lowered); len(columns) > 0 {
		if !a.hasIndexTuple(table, columns) {
			name := indexName(table, columns)
			suggestions = append(suggestions, store.Suggestion{
				Type:           store.SuggestionTypeIndex,
				Priority:       store.PriorityMedium,
				Message:        fmt.Sprintf("ORDER BY on %s(%s) has no index covering the full column tuple", table, strings.Join(columns, ", ")),
				SuggestedIndex: name,
				SuggestedSQL:   fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, strings.Join(columns, ", ")),
			})
		}
	}

	if !limitRe.MatchString(lowered) && a.estimatedRows(lowered) > 1000 {
		suggestions = append(suggestions, store.Suggestion{
			Type:     store.SuggestionTypeRewrite,
			Priority: store.PriorityMedium,
			Message:  "Query may return over 1000 rows; add a LIMIT clause to bound the result set",
		})
	}

	if inSelectRe.MatchString(lowered) {
		suggestions = append(suggestions, store.Suggestion{
			Type:     store.SuggestionTypeRewrite,
			Priority: store.PriorityMedium,
			Message:  "IN (SELECT ...) subquery can usually be rewritten as a JOIN for better plans",
		})
	}

	return suggestions
}

func (a *heuristicAnalyzer) indexSuggestion(table, column, message string, priority store.SuggestionPriority) store.Suggestion {
	name := indexName(table, []string{column})
	return store.Suggestion{
		Type:           store.SuggestionTypeIndex,
		Priority:       priority,
		Message:        message,
		SuggestedIndex: name,
		SuggestedSQL:   fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, column),
	}
}

// hasIndexOn reports whether any index on the table leads with the column
func (a *heuristicAnalyzer) hasIndexOn(table, column string) bool {
	for _, idx := range a.indexes {
		if idx.Table == table && len(idx.Columns) > 0 && idx.Columns[0] == column {
			return true
		}
	}
	return false
}

// hasIndexTuple reports whether any index on the table starts with the
// exact column tuple in order
func (a *heuristicAnalyzer) hasIndexTuple(table string, columns []string) bool {
	for _, idx := range a.indexes {
		if idx.Table != table || len(idx.Columns) < len(columns) {
			continue
		}
		match := true
		for i, col := range columns {
			if idx.Columns[i] != col {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// estimatedRows guesses the result cardinality from table statistics.
// A WHERE clause halves the estimate; no real plan cardinality is available.
func (a *heuristicAnalyzer) estimatedRows(lowered string) int64 {
	m := fromTableRe.FindStringSubmatch(lowered)
	if m == nil {
		return 0
	}
	rows := a.tableRows[m[1]]
	if strings.Contains(lowered, " where ") {
		return rows / 2
	}
	return rows
}

type tableColumn struct {
	table  string
	column string
}

// extractWhereColumns finds table.column equality conditions in the WHERE
// clause
func extractWhereColumns(lowered string) []tableColumn {
	pos := strings.Index(lowered, " where ")
	if pos < 0 {
		return nil
	}
	clause := lowered[pos+len(" where "):]
	for _, terminator := range []string{" order by ", " group by ", " limit "} {
		if end := strings.Index(clause, terminator); end >= 0 {
			clause = clause[:end]
		}
	}

	var out []tableColumn
	seen := make(map[tableColumn]bool)
	for _, m := range whereCondRe.FindAllStringSubmatch(clause, -1) {
		tc := tableColumn{table: m[1], column: m[2]}
		if !seen[tc] {
			seen[tc] = true
			out = append(out, tc)
		}
	}
	return out
}

// extractJoinColumns finds both sides of JOIN ... ON a.col = b.col conditions
func extractJoinColumns(lowered string) []tableColumn {
	var out []tableColumn
	seen := make(map[tableColumn]bool)
	for _, m := range joinRe.FindAllStringSubmatch(lowered, -1) {
		for _, tc := range []tableColumn{{table: m[2], column: m[3]}, {table: m[4], column: m[5]}} {
			if !seen[tc] {
				seen[tc] = true
				out = append(out, tc)
			}
		}
	}
	return out
}

// extractOrderByColumns returns the ordering column tuple when all columns
// are table-qualified and belong to the same table
func extractOrderByColumns(lowered string) (string, []string) {
	m := orderByRe.FindStringSubmatch(lowered)
	if m == nil {
		return "", nil
	}

	var table string
	var columns []string
	for _, part := range strings.Split(m[1], ",") {
		cm := orderColRe.FindStringSubmatch(strings.TrimSpace(part))
		if cm == nil {
			return "", nil
		}
		if table == "" {
			table = cm[1]
		} else if table != cm[1] {
			return "", nil
		}
		columns = append(columns, cm[2])
	}

	return table, columns
}

// indexName derives a deterministic index name from table and columns
func indexName(table string, columns []string) string {
	return "idx_" + table + "_" + strings.Join(columns, "_")
}

// QueryDigest derives a stable identifier from normalized SQL text
func QueryDigest(sql string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(sql)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
