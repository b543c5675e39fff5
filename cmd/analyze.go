package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze query performance and index usage",
	Long: `Analyze recorded query performance.

Subcommands report slow queries with optimization suggestions, score
index usage, and propose indexes for frequently accessed columns.

Examples:
  dbpulse analyze slow                # Slow query report (last 7 days)
  dbpulse analyze slow --days 30      # Slow query report over 30 days
  dbpulse analyze indexes             # Index usage and effectiveness
  dbpulse analyze suggest             # Auto-index suggestions
  dbpulse analyze dashboard           # 24-hour performance summary`,
}

// analyzeSlowCmd reports slow queries
var analyzeSlowCmd = &cobra.Command{
	Use:   "slow",
	Short: "Report slow queries with optimization suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		days, err := cmd.Flags().GetInt("days")
		if err != nil {
			return fmt.Errorf("failed to get days flag: %w", err)
		}
		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}

		reports, err := mgr.Optimizer().GenerateSlowQueryReport(days)
		if err != nil {
			return fmt.Errorf("failed to generate slow query report: %w", err)
		}

		if jsonOutput {
			return printJSON(reports)
		}

		if len(reports) == 0 {
			fmt.Printf("✅ No slow queries recorded in the last %d days\n", days)
			return nil
		}

		fmt.Printf("🐢 Slow Queries (last %d days)\n", days)
		fmt.Println("========================")
		for i, report := range reports {
			fmt.Printf("\n%d. %s\n", i+1, report.SQL)
			fmt.Printf("   Executions: %d  Avg: %.1fms  Max: %.1fms\n",
				report.TotalExecutions, report.AvgTime, report.MaxTime)
			for _, suggestion := range report.Suggestions {
				fmt.Printf("   💡 [%s] %s\n", suggestion.Priority, suggestion.Message)
			}
		}

		return nil
	},
}

// analyzeIndexesCmd reports index usage
var analyzeIndexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Report index usage and effectiveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		days, err := cmd.Flags().GetInt("days")
		if err != nil {
			return fmt.Errorf("failed to get days flag: %w", err)
		}
		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}

		usage, err := mgr.Optimizer().AnalyzeIndexUsage(days)
		if err != nil {
			return fmt.Errorf("failed to analyze index usage: %w", err)
		}

		if jsonOutput {
			return printJSON(usage)
		}

		if len(usage) == 0 {
			fmt.Println("No user indexes found")
			return nil
		}

		fmt.Printf("📇 Index Usage (last %d days)\n", days)
		fmt.Println("========================")
		for _, idx := range usage {
			marker := "✅"
			if idx.Unused {
				marker = "⚠️ "
			}
			fmt.Printf("  %s %-30s %-20s uses=%-6d avg=%.1fms score=%.0f\n",
				marker, idx.Name, idx.Table, idx.UsageCount, idx.AvgTime, idx.Effectiveness)
		}

		return nil
	},
}

// analyzeSuggestCmd proposes auto-indexes
var analyzeSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest indexes for frequently accessed columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		ddl, err := mgr.Optimizer().SuggestAutoIndexes()
		if err != nil {
			return fmt.Errorf("failed to suggest indexes: %w", err)
		}

		if len(ddl) == 0 {
			fmt.Println("✅ No index suggestions, recorded queries are covered")
			return nil
		}

		fmt.Printf("💡 Suggested Indexes (%d)\n", len(ddl))
		fmt.Println("========================")
		for _, stmt := range ddl {
			fmt.Printf("  %s;\n", stmt)
		}
		fmt.Println("\nRun 'dbpulse optimize' to apply these automatically.")

		return nil
	},
}

// analyzeDashboardCmd shows the 24-hour performance summary
var analyzeDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show a 24-hour performance summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}

		data, err := mgr.Optimizer().GetPerformanceDashboardData()
		if err != nil {
			return fmt.Errorf("failed to collect dashboard data: %w", err)
		}

		if jsonOutput {
			return printJSON(data)
		}

		fmt.Printf("📊 Performance Dashboard (last 24h)\n")
		fmt.Println("========================")
		fmt.Printf("Avg Query Time: %.1fms\n", data.AvgQueryTime)
		fmt.Printf("Slow Queries:   %d\n", data.SlowQueries)
		fmt.Printf("Cache Hit Rate: %.0f%%\n", data.CacheHitRate*100)

		if len(data.TopSlowQueries) > 0 {
			fmt.Println("\nTop Slow Queries:")
			for i, g := range data.TopSlowQueries {
				fmt.Printf("  %d. [%.1fms avg, %d runs] %s\n", i+1, g.AvgTime, g.TotalExecutions, g.SQL)
			}
		}

		return nil
	},
}

func printJSON(v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	fmt.Println(string(jsonData))
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeSlowCmd)
	analyzeCmd.AddCommand(analyzeIndexesCmd)
	analyzeCmd.AddCommand(analyzeSuggestCmd)
	analyzeCmd.AddCommand(analyzeDashboardCmd)

	analyzeSlowCmd.Flags().Int("days", 7, "number of trailing days to analyze")
	analyzeSlowCmd.Flags().Bool("json", false, "output as JSON")
	analyzeIndexesCmd.Flags().Int("days", 30, "number of trailing days to analyze")
	analyzeIndexesCmd.Flags().Bool("json", false, "output as JSON")
	analyzeDashboardCmd.Flags().Bool("json", false, "output as JSON")
}
