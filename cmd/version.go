package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbpulse/dbpulse/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return fmt.Errorf("failed to get json flag: %w", err)
		}

		if jsonOutput {
			jsonData, err := json.MarshalIndent(version.Get(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal version to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		}

		fmt.Println(version.GetDetailedVersionString())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("json", false, "output version as JSON")
}
