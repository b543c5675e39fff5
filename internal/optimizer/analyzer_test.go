package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpulse/dbpulse/internal/store"
)

func suggestionsByType(suggestions []store.Suggestion, t store.SuggestionType) []store.Suggestion {
	var out []store.Suggestion
	for _, s := range suggestions {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

func TestAnalyzeQuerySelectStar(t *testing.T) {
	analyzer := NewHeuristicAnalyzer(nil, nil)

	suggestions := analyzer.AnalyzeQuery("SELECT * FROM users")
	rewrites := suggestionsByType(suggestions, store.SuggestionTypeRewrite)
	require.Len(t, rewrites, 1)
	assert.Contains(t, rewrites[0].Message, "SELECT *")
	assert.Equal(t, store.PriorityMedium, rewrites[0].Priority)
}

func TestAnalyzeQueryWhereWithoutIndex(t *testing.T) {
	analyzer := NewHeuristicAnalyzer(nil, nil)

	suggestions := analyzer.AnalyzeQuery("SELECT id FROM users WHERE users.email = 'a@example.com'")
	indexes := suggestionsByType(suggestions, store.SuggestionTypeIndex)
	require.Len(t, indexes, 1)
	assert.Equal(t, store.PriorityHigh, indexes[0].Priority)
	assert.Equal(t, "idx_users_email", indexes[0].SuggestedIndex)
	assert.Equal(t, "CREATE INDEX idx_users_email ON users(email)", indexes[0].SuggestedSQL)
}

func TestAnalyzeQueryWhereCoveredByIndex(t *testing.T) {
	analyzer := NewHeuristicAnalyzer([]*store.IndexInfo{
		{Name: "idx_users_email", Table: "users", Columns: []string{"email"}},
	}, nil)

	suggestions := analyzer.AnalyzeQuery("SELECT id FROM users WHERE users.email = 'a@example.com'")
	assert.Empty(t, suggestionsByType(suggestions, store.SuggestionTypeIndex))
}

func TestAnalyzeQueryJoinColumns(t *testing.T) {
	analyzer := NewHeuristicAnalyzer(nil, nil)

	suggestions := analyzer.AnalyzeQuery(
		"SELECT o.id FROM orders o JOIN users ON orders.user_id = users.id")
	indexes := suggestionsByType(suggestions, store.SuggestionTypeIndex)
	require.Len(t, indexes, 2)

	names := []string{indexes[0].SuggestedIndex, indexes[1].SuggestedIndex}
	assert.Contains(t, names, "idx_orders_user_id")
	assert.Contains(t, names, "idx_users_id")
}

func TestAnalyzeQueryOrderByComposite(t *testing.T) {
	analyzer := NewHeuristicAnalyzer(nil, nil)

	suggestions := analyzer.AnalyzeQuery(
		"SELECT id FROM orders ORDER BY orders.created_at, orders.status")
	indexes := suggestionsByType(suggestions, store.SuggestionTypeIndex)
	require.Len(t, indexes, 1)
	assert.Equal(t, "idx_orders_created_at_status", indexes[0].SuggestedIndex)
	assert.Equal(t, "CREATE INDEX idx_orders_created_at_status ON orders(created_at, status)", indexes[0].SuggestedSQL)
}

func TestAnalyzeQueryOrderByCoveredByCompositeIndex(t *testing.T) {
	analyzer := NewHeuristicAnalyzer([]*store.IndexInfo{
		{Name: "idx_orders_created_at_status", Table: "orders", Columns: []string{"created_at", "status"}},
	}, nil)

	suggestions := analyzer.AnalyzeQuery(
		"SELECT id FROM orders ORDER BY orders.created_at, orders.status")
	assert.Empty(t, suggestionsByType(suggestions, store.SuggestionTypeIndex))
}

func TestAnalyzeQueryMissingLimit(t *testing.T) {
	analyzer := NewHeuristicAnalyzer(nil, map[string]int64{"events": 5000})

	suggestions := analyzer.AnalyzeQuery("SELECT id FROM events")
	rewrites := suggestionsByType(suggestions, store.SuggestionTypeRewrite)
	require.Len(t, rewrites, 1)
	assert.Contains(t, rewrites[0].Message, "LIMIT")

	// Small tables do not trigger the suggestion
	small := NewHeuristicAnalyzer(nil, map[string]int64{"events": 100})
	assert.Empty(t, small.AnalyzeQuery("SELECT id FROM events"))

	// A WHERE clause halves the estimate
	filtered := NewHeuristicAnalyzer([]*store.IndexInfo{
		{Name: "idx_events_kind", Table: "events", Columns: []string{"kind"}},
	}, map[string]int64{"events": 1500})
	assert.Empty(t, filtered.AnalyzeQuery("SELECT id FROM events WHERE events.kind = 'x'"))
}

func TestAnalyzeQueryInSelectSubquery(t *testing.T) {
	analyzer := NewHeuristicAnalyzer(nil, nil)

	suggestions := analyzer.AnalyzeQuery(
		"SELECT id FROM users WHERE id IN (SELECT user_id FROM banned) LIMIT 5")
	rewrites := suggestionsByType(suggestions, store.SuggestionTypeRewrite)
	require.Len(t, rewrites, 1)
	assert.Contains(t, rewrites[0].Message, "JOIN")
}

func TestAnalyzeQueryCleanQuery(t *testing.T) {
	analyzer := NewHeuristicAnalyzer([]*store.IndexInfo{
		{Name: "idx_users_email", Table: "users", Columns: []string{"email"}},
	}, map[string]int64{"users": 50})

	suggestions := analyzer.AnalyzeQuery(
		"SELECT id, name FROM users WHERE users.email = 'a@example.com' LIMIT 1")
	assert.Empty(t, suggestions)
}

func TestQueryDigestStableAcrossWhitespace(t *testing.T) {
	a := QueryDigest("SELECT id FROM users")
	b := QueryDigest("select   id\n from USERS")
	c := QueryDigest("SELECT name FROM users")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestExtractWhereColumnsBoundedByClause(t *testing.T) {
	columns := extractWhereColumns(
		"select id from orders where orders.status = 'open' order by orders.id")
	require.Len(t, columns, 1)
	assert.Equal(t, tableColumn{table: "orders", column: "status"}, columns[0])
}
