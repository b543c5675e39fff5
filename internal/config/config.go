// Package config provides configuration loading and validation for dbpulse
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dbpulse/dbpulse/internal/errors"
	"github.com/dbpulse/dbpulse/internal/logging"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete dbpulse configuration
type Config struct {
	Global     GlobalConfig         `yaml:"global" mapstructure:"global"`
	Optimizer  OptimizerConfig      `yaml:"optimizer" mapstructure:"optimizer"`
	Backup     BackupConfig         `yaml:"backup" mapstructure:"backup"`
	Monitoring MonitoringConfig     `yaml:"monitoring" mapstructure:"monitoring"`
	Logging    logging.LoggerConfig `yaml:"logging" mapstructure:"logging"`
}

// GlobalConfig contains settings that apply to the whole process
type GlobalConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OptimizerConfig contains query instrumentation and analysis settings
type OptimizerConfig struct {
	SlowQueryThreshold  time.Duration `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`
	MetricsCacheTTL     time.Duration `yaml:"metrics_cache_ttl" mapstructure:"metrics_cache_ttl"`
	MetricRetentionDays int           `yaml:"metric_retention_days" mapstructure:"metric_retention_days"`
}

// BackupSchedule represents the configured backup cadence
type BackupSchedule string

const (
	ScheduleDaily   BackupSchedule = "daily"
	ScheduleWeekly  BackupSchedule = "weekly"
	ScheduleMonthly BackupSchedule = "monthly"
)

// Interval returns the duration between scheduled backups
func (s BackupSchedule) Interval() time.Duration {
	switch s {
	case ScheduleWeekly:
		return 168 * time.Hour
	case ScheduleMonthly:
		return 720 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// BackupConfig contains backup and retention settings
type BackupConfig struct {
	Enabled       bool           `yaml:"enabled" mapstructure:"enabled"`
	Schedule      BackupSchedule `yaml:"schedule" mapstructure:"schedule"`
	RetentionDays int            `yaml:"retention_days" mapstructure:"retention_days"`
	Compress      bool           `yaml:"compress" mapstructure:"compress"`
	Directory     string         `yaml:"directory" mapstructure:"directory"`
}

// MonitoringConfig contains periodic snapshot and maintenance settings
type MonitoringConfig struct {
	SnapshotsEnabled bool `yaml:"snapshots_enabled" mapstructure:"snapshots_enabled"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			DatabaseURL: "./dbpulse.db",
		},
		Optimizer: OptimizerConfig{
			SlowQueryThreshold:  time.Second,
			MetricsCacheTTL:     5 * time.Minute,
			MetricRetentionDays: 30,
		},
		Backup: BackupConfig{
			Enabled:       true,
			Schedule:      ScheduleDaily,
			RetentionDays: 30,
			Compress:      true,
			Directory:     "./backups",
		},
		Monitoring: MonitoringConfig{
			SnapshotsEnabled: true,
		},
		Logging: logging.DefaultLoggerConfig(),
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".dbpulse")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("DBPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapError(err, errors.ErrorTypeConfig, "CONFIG_READ_ERROR", "failed to read config file").
				WithSeverity(errors.SeverityHigh).
				WithGuidance("Check file permissions and YAML syntax")
		}
		// Config file not found is OK, we'll use defaults
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfig, "CONFIG_UNMARSHAL_ERROR", "failed to unmarshal config").
			WithSeverity(errors.SeverityHigh).
			WithGuidance("Check configuration file structure and field types")
	}

	if err := ValidateConfig(config); err != nil {
		if oe, ok := err.(*errors.OpsError); ok {
			return nil, oe
		}
		return nil, errors.WrapError(err, errors.ErrorTypeConfig, "CONFIG_VALIDATION_ERROR", "configuration validation failed").
			WithSeverity(errors.SeverityHigh).
			WithGuidance("Run 'dbpulse config validate' for detailed error information")
	}

	return config, nil
}

// setDefaults sets default values in Viper
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("global.database_url", defaults.Global.DatabaseURL)

	v.SetDefault("optimizer.slow_query_threshold", defaults.Optimizer.SlowQueryThreshold)
	v.SetDefault("optimizer.metrics_cache_ttl", defaults.Optimizer.MetricsCacheTTL)
	v.SetDefault("optimizer.metric_retention_days", defaults.Optimizer.MetricRetentionDays)

	v.SetDefault("backup.enabled", defaults.Backup.Enabled)
	v.SetDefault("backup.schedule", string(defaults.Backup.Schedule))
	v.SetDefault("backup.retention_days", defaults.Backup.RetentionDays)
	v.SetDefault("backup.compress", defaults.Backup.Compress)
	v.SetDefault("backup.directory", defaults.Backup.Directory)

	v.SetDefault("monitoring.snapshots_enabled", defaults.Monitoring.SnapshotsEnabled)

	v.SetDefault("logging.level", string(defaults.Logging.Level))
	v.SetDefault("logging.format", string(defaults.Logging.Format))
	v.SetDefault("logging.output", defaults.Logging.Output)
}

// ValidateConfig checks the configuration for invalid or inconsistent values
func ValidateConfig(config *Config) error {
	if config.Global.DatabaseURL == "" {
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_DATABASE_URL", "global.database_url must not be empty").
			WithGuidance("Set global.database_url to the SQLite database path")
	}

	if config.Optimizer.SlowQueryThreshold <= 0 {
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_SLOW_THRESHOLD", "optimizer.slow_query_threshold must be positive")
	}

	if config.Optimizer.MetricsCacheTTL < 0 {
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_CACHE_TTL", "optimizer.metrics_cache_ttl must not be negative")
	}

	if config.Optimizer.MetricRetentionDays <= 0 {
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_METRIC_RETENTION", "optimizer.metric_retention_days must be positive")
	}

	switch config.Backup.Schedule {
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly:
	default:
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_BACKUP_SCHEDULE",
			fmt.Sprintf("backup.schedule %q is not one of daily, weekly, monthly", config.Backup.Schedule))
	}

	if config.Backup.RetentionDays <= 0 {
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_BACKUP_RETENTION", "backup.retention_days must be positive")
	}

	if config.Backup.Enabled && config.Backup.Directory == "" {
		return errors.NewError(errors.ErrorTypeConfig, "CONFIG_BACKUP_DIRECTORY", "backup.directory must be set when backups are enabled")
	}

	return nil
}

// SaveConfig writes the configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "CONFIG_MARSHAL_ERROR", "failed to marshal configuration")
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "CONFIG_WRITE_ERROR", "failed to write configuration file").
			WithGuidance("Check directory permissions")
	}

	return nil
}

// ConfigExists checks whether a configuration file exists at the given path
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigFilePath resolves the configuration file path
func GetConfigFilePath(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return ".dbpulse.yaml"
}
