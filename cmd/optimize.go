package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run a comprehensive optimization pass",
	Long: `Run a comprehensive optimization pass over the database.

The pass mines the query log for frequently filtered and joined columns
and creates the suggested indexes, refreshes per-table statistics, runs
the backup schedule, and persists high-priority suggestions from a fresh
slow-query analysis.

Examples:
  dbpulse optimize          # Run the full optimization pass`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Println("⚙️  Running comprehensive optimization...")

		summary, err := mgr.PerformComprehensiveOptimization(context.Background())
		if err != nil {
			return fmt.Errorf("optimization failed: %w", err)
		}

		fmt.Printf("\n✅ Optimization completed in %v\n", summary.Duration.Round(time.Millisecond))
		fmt.Printf("========================\n")
		fmt.Printf("Indexes Created:    %d\n", summary.IndexesCreated)
		fmt.Printf("Statistics Updated: %d tables\n", summary.StatisticsUpdated)
		fmt.Printf("Backup Completed:   %v\n", summary.BackupCompleted)
		fmt.Printf("Suggestions Found:  %d\n", summary.SuggestionsTotal)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
