package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// recoverCmd represents the recover command
var recoverCmd = &cobra.Command{
	Use:   "recover <backup-id>",
	Short: "Recover the database from a backup after corruption",
	Long: `Recover the database from a recorded backup.

Recovery first takes a safety backup of the current state, then restores
the requested backup with existing tables dropped, and finally verifies
system health. If health is still critical after the restore, the command
fails and the safety backup remains available.

Examples:
  dbpulse recover full_20250101_020000          # Recover with confirmation prompt
  dbpulse recover full_20250101_020000 --yes    # Recover without prompting`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()

		yes, err := cmd.Flags().GetBool("yes")
		if err != nil {
			return fmt.Errorf("failed to get yes flag: %w", err)
		}

		backupID := args[0]

		if !yes {
			fmt.Printf("⚠️  This will REPLACE all user tables with the contents of backup %s.\n", backupID)
			fmt.Print("Continue? (y/N): ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				fmt.Println("Recovery cancelled")
				return nil
			}
		}

		fmt.Printf("🚑 Starting emergency recovery from %s...\n", backupID)

		if err := mgr.EmergencyRecovery(context.Background(), backupID); err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}

		fmt.Println("✅ Recovery completed, system health verified")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)

	recoverCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
}
