package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a backup of the database",
	Long: `Create a logical backup of all user tables, including schema DDL.

Full backups capture every row; incremental backups capture rows changed
since the last recorded backup, falling back to a full table export for
tables without change-tracking columns. Payloads are checksummed and
stored in the configured backup directory.

Examples:
  dbpulse backup                    # Create a full backup
  dbpulse backup --incremental      # Create an incremental backup
  dbpulse backup list               # List recorded backups`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		incremental, err := cmd.Flags().GetBool("incremental")
		if err != nil {
			return fmt.Errorf("failed to get incremental flag: %w", err)
		}

		ctx := context.Background()
		startTime := time.Now()

		if incremental {
			last, err := st.LatestBackup()
			if err != nil {
				return fmt.Errorf("failed to read backup history: %w", err)
			}
			if last == nil {
				fmt.Println("💡 No previous backup found, creating a full backup instead")
				incremental = false
			} else {
				fmt.Printf("💾 Creating incremental backup (changes since %s)\n",
					last.Timestamp.Format("2006-01-02 15:04:05"))
				meta, err := mgr.Backups().CreateIncrementalBackup(ctx, last.Timestamp)
				if err != nil {
					return fmt.Errorf("failed to create incremental backup: %w", err)
				}
				printBackupResult(meta.ID, meta.RecordCount, meta.SizeBytes, time.Since(startTime))
				return nil
			}
		}

		fmt.Println("💾 Creating full backup")
		meta, err := mgr.Backups().CreateFullBackup(ctx)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		printBackupResult(meta.ID, meta.RecordCount, meta.SizeBytes, time.Since(startTime))
		return nil
	},
}

// backupListCmd lists recorded backups
var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		backups, err := mgr.Backups().ListBackups()
		if err != nil {
			return fmt.Errorf("failed to list backups: %w", err)
		}

		if len(backups) == 0 {
			fmt.Println("No backups recorded yet. Run 'dbpulse backup' to create one.")
			return nil
		}

		fmt.Printf("📦 Recorded Backups (%d)\n", len(backups))
		fmt.Println("========================")
		for _, b := range backups {
			sizeMB := float64(b.SizeBytes) / 1024 / 1024
			fmt.Printf("  • %s  %-11s  %s  %.2f MB  %d records  %d tables\n",
				b.ID, b.Type, b.Timestamp.Format("2006-01-02 15:04:05"), sizeMB, b.RecordCount, len(b.Tables))
		}

		return nil
	},
}

func printBackupResult(id string, records, sizeBytes int64, duration time.Duration) {
	fmt.Printf("✅ Backup created successfully in %v\n", duration.Round(time.Millisecond))
	fmt.Printf("📁 Backup ID: %s\n", id)
	fmt.Printf("📈 Records: %d (%.2f MB)\n", records, float64(sizeBytes)/1024/1024)
	fmt.Printf("💡 To restore this backup later, run: dbpulse restore %s\n", id)
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupListCmd)

	backupCmd.Flags().Bool("incremental", false, "back up only rows changed since the last backup")
}
