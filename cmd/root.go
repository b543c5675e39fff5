// Package cmd contains all CLI commands for dbpulse
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbpulse/dbpulse/internal/config"
	"github.com/dbpulse/dbpulse/internal/errors"
	"github.com/dbpulse/dbpulse/internal/logging"
	"github.com/dbpulse/dbpulse/internal/manager"
	"github.com/dbpulse/dbpulse/internal/store"
	"github.com/dbpulse/dbpulse/internal/version"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbpulse",
	Short: "Database performance monitoring, optimization and backups",
	Long: `dbpulse is a CLI tool that instruments query execution, analyzes slow
queries, manages scheduled backups with verified restores, and keeps an
operational health picture of a SQLite database.

It records per-query performance metrics, suggests and applies indexes,
takes full and incremental backups on a schedule, and can recover the
database from any recorded backup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		versionFlag, err := cmd.Flags().GetBool("version")
		if err != nil {
			return fmt.Errorf("failed to get version flag: %w", err)
		}
		if versionFlag {
			fmt.Println(version.GetVersionString())
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .dbpulse.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.Flags().BoolP("version", "", false, "show version information")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	logConfig := logging.DefaultLoggerConfig()

	if rootCmd.Flag("verbose").Changed {
		logConfig.Level = logging.LogLevelDebug
	}

	var err error
	logger, err = logging.NewLogger(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing global logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		if oe, ok := err.(*errors.OpsError); ok {
			logger.LogError(context.TODO(), oe, "Failed to load configuration")
			fmt.Fprintf(os.Stderr, "Configuration Error: %s\n", oe.Message)
			if oe.Guidance != "" {
				fmt.Fprintf(os.Stderr, "Guidance: %s\n", oe.Guidance)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		}
		os.Exit(1)
	}

	if rootCmd.Flag("verbose").Changed {
		configPath := config.GetConfigFilePath(cfgFile)
		if config.ConfigExists(configPath) {
			logger.Info("Using config file", "path", configPath)
		} else {
			logger.Info("Using default configuration (no config file found)")
		}
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// GetLogger returns the initialized logger
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return logger
}

// openManager opens the database and constructs the manager on top of it.
// The caller closes the returned store.
func openManager() (*manager.Manager, *store.Store, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}

	st, err := store.Open(cfg.Global.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	mgr, err := manager.New(st, cfg, GetLogger())
	if err != nil {
		st.Close() // nolint:errcheck
		return nil, nil, err
	}

	return mgr, st, nil
}
