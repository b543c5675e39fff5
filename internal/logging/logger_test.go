package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpulse/dbpulse/internal/errors"
)

func TestNewLoggerDefaults(t *testing.T) {
	logger, err := NewLogger(DefaultLoggerConfig())
	require.NoError(t, err)
	defer logger.Close()

	assert.Equal(t, LogLevelInfo, logger.GetLevel())
	assert.False(t, logger.IsDebugEnabled())
}

func TestNewLoggerDebugLevel(t *testing.T) {
	config := DefaultLoggerConfig()
	config.Level = LogLevelDebug

	logger, err := NewLogger(config)
	require.NoError(t, err)
	defer logger.Close()

	assert.True(t, logger.IsDebugEnabled())
}

func TestNewLoggerFileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "logs", "dbpulse.log")

	config := DefaultLoggerConfig()
	config.Output = logPath
	config.Format = LogFormatJSON

	logger, err := NewLogger(config)
	require.NoError(t, err)

	logger.Info("test message", "key", "value")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test message")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestLogErrorWithOpsError(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "dbpulse.log")

	config := DefaultLoggerConfig()
	config.Output = logPath
	config.Format = LogFormatJSON

	logger, err := NewLogger(config)
	require.NoError(t, err)

	opsErr := errors.NewError(errors.ErrorTypeBackup, "BACKUP_FAILED", "backup failed").
		WithGuidance("check disk space")
	logger.LogError(context.Background(), opsErr, "Operation failed")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BACKUP_FAILED")
	assert.Contains(t, string(data), "check disk space")
}

func TestWithComponent(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "dbpulse.log")

	config := DefaultLoggerConfig()
	config.Output = logPath
	config.Format = LogFormatJSON

	logger, err := NewLogger(config)
	require.NoError(t, err)

	scoped := logger.WithComponent("optimizer")
	scoped.Info("scoped message")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"optimizer"`)
}

func TestGlobalLogger(t *testing.T) {
	defer CloseGlobalLogger() // nolint:errcheck

	require.NoError(t, InitGlobalLogger(DefaultLoggerConfig()))
	logger := GetGlobalLogger()
	assert.NotNil(t, logger)
}
