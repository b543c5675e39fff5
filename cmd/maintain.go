package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// maintainCmd represents the maintain command
var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run routine database maintenance",
	Long: `Run the routine maintenance pass.

Maintenance prunes query metrics past the retention window, reports
indexes that have gone unused (they are never dropped automatically),
verifies database integrity, vacuums the database file, and records a
daily performance snapshot.

Examples:
  dbpulse maintain          # Run routine maintenance now`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Println("🧹 Running routine maintenance...")

		report, err := mgr.PerformRoutineMaintenance(context.Background())
		if err != nil {
			return fmt.Errorf("maintenance failed: %w", err)
		}

		fmt.Printf("\n✅ Maintenance completed\n")
		fmt.Printf("========================\n")
		fmt.Printf("Metrics Pruned: %d\n", report.MetricsPruned)

		if report.Vacuumed {
			fmt.Printf("Vacuum:         ✅ done\n")
		}
		if report.Integrity.Healthy {
			fmt.Printf("Integrity:      ✅ OK\n")
		} else {
			fmt.Printf("Integrity:      ❌ %d problems\n", len(report.Integrity.Problems))
			for _, problem := range report.Integrity.Problems {
				fmt.Printf("  • %s\n", problem)
			}
		}

		if len(report.UnusedIndexes) > 0 {
			fmt.Printf("\n⚠️  Unused indexes (consider dropping manually):\n")
			for _, name := range report.UnusedIndexes {
				fmt.Printf("  • %s\n", name)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(maintainCmd)
}
