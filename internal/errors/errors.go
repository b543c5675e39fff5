// Package errors provides structured error handling for dbpulse
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "CONFIG"
	ErrorTypeStorage   ErrorType = "STORAGE"
	ErrorTypeBackup    ErrorType = "BACKUP"
	ErrorTypeIntegrity ErrorType = "INTEGRITY"
	ErrorTypeAnalysis  ErrorType = "ANALYSIS"
	ErrorTypeHealth    ErrorType = "HEALTH"
	ErrorTypeSystem    ErrorType = "SYSTEM"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// OpsError represents a structured error with context and recovery guidance
type OpsError struct {
	Type        ErrorType              `json:"type"`
	Severity    Severity               `json:"severity"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Guidance    string                 `json:"guidance,omitempty"`
	Cause       error                  `json:"cause,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Recoverable bool                   `json:"recoverable"`
}

// Error implements the error interface
func (e *OpsError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s:%s]", e.Type, e.Code))
	parts = append(parts, e.Message)

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("caused by: %v", e.Cause))
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause error
func (e *OpsError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error type
func (e *OpsError) Is(target error) bool {
	if t, ok := target.(*OpsError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context information to the error
func (e *OpsError) WithContext(key string, value interface{}) *OpsError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithGuidance adds recovery guidance to the error
func (e *OpsError) WithGuidance(guidance string) *OpsError {
	e.Guidance = guidance
	return e
}

// WithSeverity sets the severity level of the error
func (e *OpsError) WithSeverity(severity Severity) *OpsError {
	e.Severity = severity
	return e
}

// WithRecoverable sets whether the error is recoverable
func (e *OpsError) WithRecoverable(recoverable bool) *OpsError {
	e.Recoverable = recoverable
	return e
}

// WithCause attaches an underlying cause, returning a copy so sentinel
// errors stay immutable
func (e *OpsError) WithCause(err error) *OpsError {
	clone := *e
	clone.Cause = err
	return &clone
}

// NewError creates a new OpsError
func NewError(errorType ErrorType, code, message string) *OpsError {
	return &OpsError{
		Type:        errorType,
		Code:        code,
		Message:     message,
		Severity:    SeverityMedium,
		Recoverable: false,
		Context:     make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with dbpulse error context
func WrapError(err error, errorType ErrorType, code, message string) *OpsError {
	return &OpsError{
		Type:        errorType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Severity:    SeverityMedium,
		Recoverable: false,
		Context:     make(map[string]interface{}),
	}
}

// Configuration Errors
var (
	ErrConfigNotFound = NewError(ErrorTypeConfig, "CONFIG_NOT_FOUND", "configuration file not found").
				WithGuidance("Run 'dbpulse config init' to create a default configuration file")

	ErrConfigInvalid = NewError(ErrorTypeConfig, "CONFIG_INVALID", "configuration file is invalid").
				WithGuidance("Run 'dbpulse config validate' to see detailed validation errors")
)

// Storage Errors
var (
	ErrStorageConnection = NewError(ErrorTypeStorage, "STORAGE_CONNECTION", "failed to connect to database").
				WithSeverity(SeverityCritical).
				WithGuidance("Check database file permissions and available disk space")

	ErrSystemTablesMissing = NewError(ErrorTypeStorage, "SYSTEM_TABLES_MISSING", "required system tables are missing").
				WithSeverity(SeverityHigh).
				WithGuidance("Run migrations by reopening the database, or check that the schema was not dropped externally")

	ErrStatisticsRefresh = NewError(ErrorTypeStorage, "STATISTICS_REFRESH", "failed to refresh table statistics").
				WithSeverity(SeverityMedium).
				WithRecoverable(true)
)

// Backup Errors
var (
	ErrBackupNotFound = NewError(ErrorTypeBackup, "BACKUP_NOT_FOUND", "backup not found").
				WithSeverity(SeverityHigh).
				WithGuidance("Use 'dbpulse backup --list' to see available backups")

	ErrNothingToBackup = NewError(ErrorTypeBackup, "NOTHING_TO_BACKUP", "no rows changed since the last backup").
				WithSeverity(SeverityLow).
				WithRecoverable(true).
				WithGuidance("No incremental backup was created; a full backup can still be taken explicitly")

	ErrBackupExport = NewError(ErrorTypeBackup, "BACKUP_EXPORT", "failed to export table data").
			WithSeverity(SeverityHigh).
			WithGuidance("Check the database for locked or corrupted tables and retry")

	ErrBackupDisabled = NewError(ErrorTypeBackup, "BACKUP_DISABLED", "automatic backups are disabled").
				WithSeverity(SeverityLow).
				WithGuidance("Enable backups in the configuration to schedule automatic backups")
)

// Integrity Errors
var (
	ErrChecksumMismatch = NewError(ErrorTypeIntegrity, "CHECKSUM_MISMATCH", "backup payload checksum does not match recorded checksum").
				WithSeverity(SeverityCritical).
				WithGuidance("The backup payload is corrupted or was modified; restore from a different backup")

	ErrIntegrityCheck = NewError(ErrorTypeIntegrity, "INTEGRITY_CHECK", "database integrity check reported problems").
				WithSeverity(SeverityCritical).
				WithGuidance("Restore from the most recent verified backup")
)

// Health and Recovery Errors
var (
	ErrRecoveryFailed = NewError(ErrorTypeHealth, "RECOVERY_FAILED", "system health is still critical after recovery").
				WithSeverity(SeverityCritical).
				WithGuidance("Inspect the restored database manually; the pre-recovery safety backup is available for rollback")

	ErrHealthProbe = NewError(ErrorTypeHealth, "HEALTH_PROBE", "database connectivity probe failed").
			WithSeverity(SeverityCritical).
			WithRecoverable(true)
)

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	if oe, ok := err.(*OpsError); ok {
		return oe.Recoverable
	}
	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if oe, ok := err.(*OpsError); ok {
		return oe.Severity
	}
	return SeverityMedium
}

// GetErrorType returns the type of an error
func GetErrorType(err error) ErrorType {
	if oe, ok := err.(*OpsError); ok {
		return oe.Type
	}
	return ErrorTypeSystem
}

// GetGuidance returns recovery guidance for an error
func GetGuidance(err error) string {
	if oe, ok := err.(*OpsError); ok {
		return oe.Guidance
	}
	return "Check the error message and logs for more information"
}
