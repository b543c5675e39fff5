package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrorTypeBackup, "TEST_CODE", "something broke")

	assert.Equal(t, ErrorTypeBackup, err.Type)
	assert.Equal(t, "TEST_CODE", err.Code)
	assert.Equal(t, SeverityMedium, err.Severity)
	assert.Contains(t, err.Error(), "[BACKUP:TEST_CODE]")
	assert.Contains(t, err.Error(), "something broke")
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := WrapError(cause, ErrorTypeStorage, "WRITE_FAILED", "failed to write")

	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "caused by: disk full")
	assert.True(t, stderrors.Is(err, cause))
}

func TestErrorIsMatchesByTypeAndCode(t *testing.T) {
	err := ErrChecksumMismatch.WithContext("expected", "abc")

	assert.True(t, stderrors.Is(err, ErrChecksumMismatch))
	assert.False(t, stderrors.Is(err, ErrBackupNotFound))
}

func TestWithCauseClones(t *testing.T) {
	cause := fmt.Errorf("boom")
	wrapped := ErrStatisticsRefresh.WithCause(cause)

	require.NotSame(t, ErrStatisticsRefresh, wrapped)
	assert.Nil(t, ErrStatisticsRefresh.Cause)
	assert.Equal(t, cause, wrapped.Cause)
	assert.True(t, stderrors.Is(wrapped, ErrStatisticsRefresh))
}

func TestBuilderHelpers(t *testing.T) {
	err := NewError(ErrorTypeHealth, "CODE", "msg").
		WithSeverity(SeverityCritical).
		WithGuidance("try again").
		WithRecoverable(true).
		WithContext("key", "value")

	assert.Equal(t, SeverityCritical, err.Severity)
	assert.Equal(t, "try again", err.Guidance)
	assert.True(t, err.Recoverable)
	assert.Equal(t, "value", err.Context["key"])
}

func TestInspectionHelpers(t *testing.T) {
	err := NewError(ErrorTypeConfig, "CODE", "msg").
		WithSeverity(SeverityHigh).
		WithGuidance("fix the config").
		WithRecoverable(true)

	assert.True(t, IsRecoverable(err))
	assert.Equal(t, SeverityHigh, GetSeverity(err))
	assert.Equal(t, ErrorTypeConfig, GetErrorType(err))
	assert.Equal(t, "fix the config", GetGuidance(err))

	plain := fmt.Errorf("plain error")
	assert.False(t, IsRecoverable(plain))
	assert.Equal(t, ErrorTypeSystem, GetErrorType(plain))
	assert.Equal(t, "Check the error message and logs for more information", GetGuidance(plain))
}
