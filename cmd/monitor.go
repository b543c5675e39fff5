package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run continuous monitoring with scheduled backups and snapshots",
	Long: `Run dbpulse as a long-lived monitor.

On startup the system tables are verified and an initial full backup is
taken when none exists. While running, hourly performance snapshots are
recorded, routine maintenance runs daily at 02:00, and backups follow the
configured schedule. Stop with Ctrl+C.

Examples:
  dbpulse monitor           # Run until interrupted`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		if err := mgr.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer mgr.Close()

		fmt.Println("📡 Monitoring started, press Ctrl+C to stop")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\n👋 Monitoring stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
