package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbpulse/dbpulse/internal/backup"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore the database from a backup",
	Long: `Restore user tables from a recorded backup.

The payload checksum is verified against the recorded value before any
data is touched; a corrupted backup aborts the restore without modifying
the database.

Examples:
  dbpulse restore full_20250101_020000                  # Restore into existing tables
  dbpulse restore full_20250101_020000 --drop-existing  # Drop and recreate tables first
  dbpulse restore full_20250101_020000 --tables users   # Restore selected tables only
  dbpulse restore full_20250101_020000 --skip-data      # Restore schema only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		dropExisting, err := cmd.Flags().GetBool("drop-existing")
		if err != nil {
			return fmt.Errorf("failed to get drop-existing flag: %w", err)
		}
		tables, err := cmd.Flags().GetStringSlice("tables")
		if err != nil {
			return fmt.Errorf("failed to get tables flag: %w", err)
		}
		skipData, err := cmd.Flags().GetBool("skip-data")
		if err != nil {
			return fmt.Errorf("failed to get skip-data flag: %w", err)
		}

		backupID := args[0]
		fmt.Printf("🔄 Restoring from backup: %s\n", backupID)
		if dropExisting {
			fmt.Println("⚠️  Existing tables will be dropped and recreated")
		}

		startTime := time.Now()
		opts := backup.RestoreOptions{
			DropExisting: dropExisting,
			TableFilter:  tables,
			SkipData:     skipData,
		}
		if err := mgr.Backups().RestoreFromBackup(context.Background(), backupID, opts); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("✅ Restore completed in %v\n", time.Since(startTime).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().Bool("drop-existing", false, "drop existing tables before restoring")
	restoreCmd.Flags().StringSlice("tables", nil, "restore only the listed tables")
	restoreCmd.Flags().Bool("skip-data", false, "restore schema only, no row data")
}
