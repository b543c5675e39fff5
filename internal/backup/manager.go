// Package backup performs full and incremental logical backups of the user
// tables, checksum-verified restores, and retention-based pruning.
package backup

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dbpulse/dbpulse/internal/config"
	"github.com/dbpulse/dbpulse/internal/errors"
	"github.com/dbpulse/dbpulse/internal/logging"
	"github.com/dbpulse/dbpulse/internal/store"
)

// Manager coordinates backup creation, restore and scheduling
type Manager struct {
	store   *store.Store
	objects ObjectStore
	logger  *logging.Logger
	cfg     config.BackupConfig
	now     func() time.Time
}

// NewManager creates a backup manager over the given store and object store
func NewManager(st *store.Store, objects ObjectStore, cfg config.BackupConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		store:   st,
		objects: objects,
		logger:  logger.WithComponent("backup"),
		cfg:     cfg,
		now:     time.Now,
	}
}

// CreateFullBackup exports every user table, the schema DDL, and records
// metadata. Atomic: any export failure propagates and no metadata row is
// written.
func (m *Manager) CreateFullBackup(ctx context.Context) (*store.BackupMetadata, error) {
	now := m.now()
	id := backupID(store.BackupTypeFull, now)
	m.logger.LogOperation(ctx, "full backup", "backup_id", id)

	tables, err := m.store.ListUserTables()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_ENUMERATE", "failed to enumerate tables")
	}

	data := make(map[string][]store.Row, len(tables))
	var recordCount int64
	for _, table := range tables {
		rows, err := m.store.ExportTableRows(table)
		if err != nil {
			return nil, errors.ErrBackupExport.WithCause(err).WithContext("table", table)
		}
		data[table] = rows
		recordCount += int64(len(rows))
	}

	schema, err := m.store.SchemaObjects()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_SCHEMA", "failed to export schema")
	}

	payload := &Payload{
		Meta: PayloadMeta{
			ID:        id,
			Type:      store.BackupTypeFull,
			CreatedAt: now,
			Version:   payloadVersion,
		},
		Schema: schema,
		Data:   data,
	}

	return m.finalize(ctx, payload, tables, recordCount)
}

// CreateIncrementalBackup exports rows changed since the reference time.
// Tables without change-tracking columns degrade to a full table export.
// An empty union fails with ErrNothingToBackup instead of producing an
// empty backup.
func (m *Manager) CreateIncrementalBackup(ctx context.Context, since time.Time) (*store.BackupMetadata, error) {
	now := m.now()
	id := backupID(store.BackupTypeIncremental, now)
	m.logger.LogOperation(ctx, "incremental backup", "backup_id", id, "since", since)

	tables, err := m.store.ListUserTables()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_ENUMERATE", "failed to enumerate tables")
	}

	data := make(map[string][]store.Row, len(tables))
	var recordCount int64
	for _, table := range tables {
		rows, degraded, err := m.store.ExportTableRowsSince(table, since)
		if err != nil {
			return nil, errors.ErrBackupExport.WithCause(err).WithContext("table", table)
		}
		if degraded {
			m.logger.Warn("Table has no change-tracking columns, exporting all rows",
				"table", table, "rows", len(rows))
		}
		data[table] = rows
		recordCount += int64(len(rows))
	}

	if recordCount == 0 {
		return nil, errors.ErrNothingToBackup.WithContext("since", since)
	}

	schema, err := m.store.SchemaObjects()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_SCHEMA", "failed to export schema")
	}

	payload := &Payload{
		Meta: PayloadMeta{
			ID:        id,
			Type:      store.BackupTypeIncremental,
			CreatedAt: now,
			Version:   payloadVersion,
			Since:     &since,
		},
		Schema: schema,
		Data:   data,
	}

	return m.finalize(ctx, payload, tables, recordCount)
}

// finalize serializes, checksums, optionally compresses, uploads and only
// then records metadata
func (m *Manager) finalize(ctx context.Context, payload *Payload, tables []string, recordCount int64) (*store.BackupMetadata, error) {
	raw, checksum, err := encodePayload(payload)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_SERIALIZE", "failed to serialize backup")
	}

	stored := raw
	if m.cfg.Compress {
		stored, err = compress(raw)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_COMPRESS", "failed to compress backup")
		}
	}

	if err := m.objects.Put(payload.Meta.ID, stored); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_UPLOAD", "failed to store backup payload")
	}

	meta := &store.BackupMetadata{
		ID:          payload.Meta.ID,
		Type:        payload.Meta.Type,
		Timestamp:   payload.Meta.CreatedAt,
		SizeBytes:   int64(len(stored)),
		Compressed:  m.cfg.Compress,
		Encrypted:   false,
		Checksum:    checksum,
		Tables:      tables,
		RecordCount: recordCount,
		Version:     payloadVersion,
		Status:      store.BackupStatusCompleted,
	}

	if err := m.store.InsertBackupMetadata(meta); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_METADATA", "failed to record backup metadata")
	}

	m.logger.LogOperationSuccess(ctx, "backup", time.Since(payload.Meta.CreatedAt),
		"backup_id", meta.ID,
		"type", meta.Type,
		"tables", len(tables),
		"records", recordCount,
		"size_bytes", meta.SizeBytes)

	return meta, nil
}

// RestoreOptions controls restore behavior
type RestoreOptions struct {
	DropExisting bool
	TableFilter  []string
	SkipData     bool
}

// RestoreFromBackup verifies the payload checksum against the recorded
// value before touching any data, then restores schema and rows. A
// checksum mismatch aborts with no partial mutation.
func (m *Manager) RestoreFromBackup(ctx context.Context, backupID string, opts RestoreOptions) error {
	meta, err := m.store.GetBackupMetadata(backupID)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_LOOKUP", "failed to look up backup metadata")
	}
	if meta == nil {
		return errors.ErrBackupNotFound.WithContext("backup_id", backupID)
	}

	m.logger.LogOperation(ctx, "restore", "backup_id", backupID,
		"drop_existing", opts.DropExisting, "skip_data", opts.SkipData)

	raw, err := m.objects.Get(backupID)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_DOWNLOAD", "failed to fetch backup payload")
	}

	if meta.Compressed {
		raw, err = decompress(raw)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_DECOMPRESS", "failed to decompress backup payload")
		}
	}

	payload, err := decodePayload(raw, meta.Checksum)
	if err != nil {
		return err
	}

	included := func(table string) bool {
		if len(opts.TableFilter) == 0 {
			return true
		}
		for _, t := range opts.TableFilter {
			if t == table {
				return true
			}
		}
		return false
	}

	if opts.DropExisting {
		for _, table := range meta.Tables {
			if !included(table) {
				continue
			}
			if err := m.store.DropTable(table); err != nil {
				return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_DROP", "failed to drop existing table").
					WithContext("table", table)
			}
		}
	}

	if err := m.restoreSchema(payload, included, opts.DropExisting); err != nil {
		return err
	}

	if !opts.SkipData {
		for table, rows := range payload.Data {
			if !included(table) {
				continue
			}
			if err := m.store.RestoreTableData(table, rows); err != nil {
				return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_DATA", "failed to restore table data").
					WithContext("table", table)
			}
		}
	}

	m.logger.Info("Restore completed", "backup_id", backupID, "tables", len(meta.Tables))
	return nil
}

// restoreSchema recreates tables first, then secondary objects. When
// existing tables were not dropped, their DDL is skipped; secondary object
// failures are logged, not fatal.
func (m *Manager) restoreSchema(payload *Payload, included func(string) bool, dropped bool) error {
	existing := make(map[string]bool)
	if !dropped {
		tables, err := m.store.ListUserTables()
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_SCHEMA", "failed to enumerate tables")
		}
		for _, t := range tables {
			existing[t] = true
		}
	}

	for _, obj := range payload.Schema {
		if obj.Type != "table" || !included(obj.Name) {
			continue
		}
		if existing[obj.Name] {
			continue
		}
		if err := m.store.ExecDDL(obj.SQL); err != nil {
			return errors.WrapError(err, errors.ErrorTypeBackup, "RESTORE_SCHEMA", "failed to restore table schema").
				WithContext("table", obj.Name)
		}
	}

	for _, obj := range payload.Schema {
		if obj.Type == "table" || !included(obj.Table) {
			continue
		}
		if err := m.store.ExecDDL(obj.SQL); err != nil {
			m.logger.Warn("Failed to restore schema object", "type", obj.Type, "name", obj.Name, "error", err)
		}
	}

	return nil
}

// ScheduleAutomaticBackup checks whether a backup is due and takes one.
// Full vs incremental follows the Sunday-boundary policy; completed runs
// prune expired metadata and payloads.
func (m *Manager) ScheduleAutomaticBackup(ctx context.Context) (*store.BackupMetadata, error) {
	if !m.cfg.Enabled {
		m.logger.Debug("Automatic backups are disabled")
		return nil, nil
	}

	last, err := m.store.LatestBackup()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeBackup, "BACKUP_SCHEDULE", "failed to read last backup time")
	}

	now := m.now()
	var lastTime *time.Time
	if last != nil {
		lastTime = &last.Timestamp
	}

	if !ShouldCreateBackup(lastTime, now, m.cfg.Schedule) {
		return nil, nil
	}

	var meta *store.BackupMetadata
	if last == nil || IsFullBackupTime(last.Timestamp, now) {
		meta, err = m.CreateFullBackup(ctx)
	} else {
		meta, err = m.CreateIncrementalBackup(ctx, last.Timestamp)
		if stderrors.Is(err, errors.ErrNothingToBackup) {
			m.logger.Info("No rows changed since last backup, skipping incremental")
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	if err := m.pruneExpired(); err != nil {
		// Pruning failure does not undo a successful backup
		m.logger.Warn("Failed to prune expired backups", "error", err)
	}

	return meta, nil
}

// pruneExpired removes metadata rows and payloads past the retention window
func (m *Manager) pruneExpired() error {
	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays)
	ids, err := m.store.PruneBackupMetadata(cutoff)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := m.objects.Delete(id); err != nil {
			m.logger.Warn("Failed to delete expired backup payload", "backup_id", id, "error", err)
		}
	}

	if len(ids) > 0 {
		m.logger.Info("Pruned expired backups", "count", len(ids), "cutoff", cutoff)
	}

	return nil
}

// ListBackups returns all recorded backups, newest first
func (m *Manager) ListBackups() ([]*store.BackupMetadata, error) {
	return m.store.ListBackups()
}

// backupID derives a sortable identifier. Sub-second precision keeps ids
// unique when backups run back to back, as during emergency recovery.
func backupID(t store.BackupType, at time.Time) string {
	return fmt.Sprintf("%s_%s", t, at.Format("20060102_150405.000000"))
}
