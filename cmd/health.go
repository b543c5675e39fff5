package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dbpulse/dbpulse/internal/manager"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health status of the database",
	Long: `Check the operational health of the database and its supporting
subsystems.

The check covers:
- Database connectivity and query latency
- Backup recency against the configured schedule
- Metrics-cache hit rate over the last 24 hours
- Index effectiveness scores

Examples:
  dbpulse health           # Show full health assessment
  dbpulse health --quick   # Connectivity probe only, exit code reflects result
  dbpulse health --json    # Output health status as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		quick, err := cmd.Flags().GetBool("quick")
		if err != nil {
			return fmt.Errorf("failed to get quick flag: %w", err)
		}
		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}

		ctx := context.Background()

		if quick {
			if mgr.QuickHealthCheck(ctx) {
				fmt.Println("✅ Database is reachable")
				return nil
			}
			return fmt.Errorf("database connectivity probe failed")
		}

		fmt.Println("🔍 Checking system health...")
		status := mgr.SystemHealth(ctx)

		if jsonOutput {
			jsonData, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal health status to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		}

		displayHealthStatus(status)

		GetLogger().Info("Health check completed", "overall", status.Overall)

		if status.Overall == manager.HealthCritical {
			return fmt.Errorf("system health is critical")
		}
		return nil
	},
}

func displayHealthStatus(status *manager.SystemHealthStatus) {
	fmt.Printf("\n🏥 System Health Status\n")
	fmt.Printf("========================\n")
	fmt.Printf("Overall: %s %s\n", healthEmoji(status.Overall), status.Overall)
	fmt.Printf("Checked At: %s\n\n", status.CheckedAt.Format("2006-01-02 15:04:05"))

	names := make([]string, 0, len(status.Components))
	for name := range status.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		component := status.Components[name]
		fmt.Printf("  %s %-10s %s\n", healthEmoji(component.Status), name, component.Message)
	}
}

func healthEmoji(level manager.HealthLevel) string {
	switch level {
	case manager.HealthHealthy:
		return "✅"
	case manager.HealthWarning:
		return "⚠️ "
	default:
		return "❌"
	}
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().Bool("quick", false, "connectivity probe only")
	healthCmd.Flags().Bool("json", false, "output health status as JSON")
}
