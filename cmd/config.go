package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbpulse/dbpulse/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dbpulse configuration",
	Long: `Manage the dbpulse configuration file.

Examples:
  dbpulse config init        # Write a default .dbpulse.yaml
  dbpulse config validate    # Validate the active configuration`,
}

// configInitCmd writes a default configuration file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigFilePath(cfgFile)

		if config.ConfigExists(path) {
			return fmt.Errorf("configuration file already exists: %s", path)
		}

		if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}

		fmt.Printf("✅ Configuration written to %s\n", path)
		return nil
	},
}

// configValidateCmd validates the active configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the active configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}

		if err := config.ValidateConfig(loaded); err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}

		fmt.Println("✅ Configuration is valid")
		fmt.Printf("  Database:        %s\n", loaded.Global.DatabaseURL)
		fmt.Printf("  Slow Threshold:  %s\n", loaded.Optimizer.SlowQueryThreshold)
		fmt.Printf("  Backup Schedule: %s (retention %dd)\n", loaded.Backup.Schedule, loaded.Backup.RetentionDays)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
