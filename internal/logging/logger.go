// Package logging provides structured logging functionality for dbpulse
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dbpulse/dbpulse/internal/errors"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat represents the log output format
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      LogLevel  `yaml:"level" mapstructure:"level"`
	Format     LogFormat `yaml:"format" mapstructure:"format"`
	Output     string    `yaml:"output" mapstructure:"output"` // "stdout", "stderr", or file path
	TimeFormat string    `yaml:"time_format" mapstructure:"time_format"`
	AddSource  bool      `yaml:"add_source" mapstructure:"add_source"`
}

// DefaultLoggerConfig returns a default logger configuration
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LogLevelInfo,
		Format:     LogFormatText,
		Output:     "stderr",
		TimeFormat: time.RFC3339,
		AddSource:  false,
	}
}

// Logger wraps slog with dbpulse-specific helpers
type Logger struct {
	*slog.Logger
	writer io.Writer
	file   *os.File
	config LoggerConfig
}

func NewLogger(config LoggerConfig) (*Logger, error) {
	var writer io.Writer
	var file *os.File

	switch config.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr", "":
		writer = os.Stderr
	default:
		// File output
		dir := filepath.Dir(config.Output)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = f
		file = f
	}

	var level slog.Level
	switch config.Level {
	case LogLevelDebug:
		level = slog.LevelDebug
	case LogLevelInfo:
		level = slog.LevelInfo
	case LogLevelWarn:
		level = slog.LevelWarn
	case LogLevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch config.Format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: config,
		writer: writer,
		file:   file,
	}, nil
}

// Close closes the log file handle if one is open
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogError logs a dbpulse error with appropriate context
func (l *Logger) LogError(ctx context.Context, err error, msg string, args ...interface{}) {
	if oe, ok := err.(*errors.OpsError); ok {
		attrs := []slog.Attr{
			slog.String("error_type", string(oe.Type)),
			slog.String("error_code", oe.Code),
			slog.String("severity", string(oe.Severity)),
			slog.Bool("recoverable", oe.Recoverable),
		}

		if oe.Guidance != "" {
			attrs = append(attrs, slog.String("guidance", oe.Guidance))
		}

		for key, value := range oe.Context {
			attrs = append(attrs, slog.Any(fmt.Sprintf("ctx_%s", key), value))
		}

		if oe.Cause != nil {
			attrs = append(attrs, slog.String("cause", oe.Cause.Error()))
		}

		l.LogAttrs(ctx, slog.LevelError, msg, attrs...)
	} else {
		l.Error(msg, "error", err)
	}
}

// LogOperation logs the start of an operation
func (l *Logger) LogOperation(ctx context.Context, operation string, args ...interface{}) {
	l.Info(fmt.Sprintf("Starting %s", operation), args...)
}

// LogOperationSuccess logs successful completion of an operation
func (l *Logger) LogOperationSuccess(ctx context.Context, operation string, duration time.Duration, args ...interface{}) {
	allArgs := append([]interface{}{"duration", duration}, args...)
	l.Info(fmt.Sprintf("Completed %s", operation), allArgs...)
}

// LogOperationFailure logs failed completion of an operation
func (l *Logger) LogOperationFailure(ctx context.Context, operation string, err error, duration time.Duration, args ...interface{}) {
	allArgs := append([]interface{}{"duration", duration, "error", err}, args...)
	l.Error(fmt.Sprintf("Failed %s", operation), allArgs...)
}

// LogHealthCheck logs health check results
func (l *Logger) LogHealthCheck(ctx context.Context, component string, healthy bool, details map[string]interface{}) {
	args := []interface{}{"component", component, "healthy", healthy}
	for key, value := range details {
		args = append(args, key, value)
	}

	if healthy {
		l.Info("Health check passed", args...)
	} else {
		l.Warn("Health check failed", args...)
	}
}

// LogSlowQuery logs a slow query with its execution metrics
func (l *Logger) LogSlowQuery(ctx context.Context, queryID string, executionTime float64, threshold float64) {
	l.Warn("Slow query detected",
		"query_id", queryID,
		"execution_time_ms", executionTime,
		"threshold_ms", threshold)
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		config: l.config,
		writer: l.writer,
	}
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.config.Level
}

// IsDebugEnabled returns true if debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.config.Level == LogLevelDebug
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(config LoggerConfig) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		config := DefaultLoggerConfig()
		logger, err := NewLogger(config)
		if err != nil {
			panic(fmt.Sprintf("Failed to create default logger: %v", err))
		}
		globalLogger = logger
	}
	return globalLogger
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	if globalLogger != nil {
		err := globalLogger.Close()
		globalLogger = nil
		return err
	}
	return nil
}
