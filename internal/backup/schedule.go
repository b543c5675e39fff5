package backup

import (
	"time"

	"github.com/dbpulse/dbpulse/internal/config"
)

// ShouldCreateBackup reports whether a backup is due. No prior backup
// always means due; otherwise the configured cadence interval must have
// elapsed.
func ShouldCreateBackup(last *time.Time, now time.Time, schedule config.BackupSchedule) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= schedule.Interval()
}

// IsFullBackupTime reports whether the next scheduled backup should be a
// full one. A full backup is taken whenever a Sunday boundary (Sunday
// 00:00 local time) has been crossed since the last backup; otherwise the
// run is incremental.
func IsFullBackupTime(last, now time.Time) bool {
	return last.Before(lastSundayStart(now))
}

// lastSundayStart returns the most recent Sunday 00:00 at or before t
func lastSundayStart(t time.Time) time.Time {
	daysBack := int(t.Weekday()) // Sunday == 0
	day := t.AddDate(0, 0, -daysBack)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
