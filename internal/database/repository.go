package database

import (
	"context"

	"github.com/alijaya/ispportal/internal/models"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/voucher"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// NotificationLogs persists delivery attempts. It satisfies notify.Log.
type NotificationLogs struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewNotificationLogs(db *gorm.DB, logger zerolog.Logger) *NotificationLogs {
	return &NotificationLogs{db: db, logger: logger}
}

func logEntry(a notify.Attempt) models.NotificationLog {
	entry := models.NotificationLog{
		Recipient: a.Recipient,
		Priority:  string(a.Priority),
		Message:   a.Message,
		Success:   a.Err == nil,
		SentAt:    a.At.UTC(),
	}
	if a.Err != nil {
		entry.Error = a.Err.Error()
	}
	return entry
}

// Record stores the attempt. A write failure is logged only, delivery has
// already happened.
func (n *NotificationLogs) Record(ctx context.Context, a notify.Attempt) {
	entry := logEntry(a)
	if err := n.db.WithContext(ctx).Create(&entry).Error; err != nil {
		n.logger.Warn().Err(err).Str("recipient", a.Recipient).Msg("failed to record notification")
	}
}

// Recent returns the newest entries first.
func (n *NotificationLogs) Recent(ctx context.Context, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.NotificationLog
	err := n.db.WithContext(ctx).Order("sent_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// VoucherBatches persists generated batches. It satisfies voucher.Recorder.
type VoucherBatches struct {
	db *gorm.DB
}

func NewVoucherBatches(db *gorm.DB) *VoucherBatches {
	return &VoucherBatches{db: db}
}

func batchRecord(b *voucher.Batch) models.VoucherBatch {
	record := models.VoucherBatch{
		ID:        b.ID,
		Profile:   b.Profile,
		Type:      b.Type,
		Price:     b.Price,
		Requested: b.Requested,
		Created:   len(b.Created()),
		Failed:    b.FailedCount(),
		CreatedAt: b.CreatedAt.UTC(),
	}
	for _, v := range b.Vouchers {
		record.Vouchers = append(record.Vouchers, models.VoucherItem{
			BatchID:  b.ID,
			Username: v.Username,
			Password: v.Password,
			Status:   v.Status,
			Error:    v.Error,
		})
	}
	return record
}

func (r *VoucherBatches) SaveBatch(ctx context.Context, b *voucher.Batch) error {
	record := batchRecord(b)
	return r.db.WithContext(ctx).Create(&record).Error
}

// Recent lists batches without their vouchers.
func (r *VoucherBatches) Recent(ctx context.Context, limit int) ([]models.VoucherBatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var batches []models.VoucherBatch
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&batches).Error
	return batches, err
}

// Get loads one batch with its vouchers.
func (r *VoucherBatches) Get(ctx context.Context, id string) (*models.VoucherBatch, error) {
	var batch models.VoucherBatch
	if err := r.db.WithContext(ctx).Preload("Vouchers").First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// AuditLogs persists admin audit entries. It satisfies middleware.AuditSink.
type AuditLogs struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewAuditLogs(db *gorm.DB, logger zerolog.Logger) *AuditLogs {
	return &AuditLogs{db: db, logger: logger}
}

func (a *AuditLogs) Record(ctx context.Context, entry models.AuditLog) {
	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		a.logger.Warn().Err(err).Str("path", entry.Path).Msg("failed to record audit entry")
	}
}

// Recent returns the newest entries first, optionally for one entity.
func (a *AuditLogs) Recent(ctx context.Context, entity string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := a.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if entity != "" {
		q = q.Where("entity = ?", entity)
	}
	var entries []models.AuditLog
	err := q.Find(&entries).Error
	return entries, err
}

// BackupLogs persists backup runs. It satisfies backup.History.
type BackupLogs struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewBackupLogs(db *gorm.DB, logger zerolog.Logger) *BackupLogs {
	return &BackupLogs{db: db, logger: logger}
}

func (b *BackupLogs) RecordBackup(ctx context.Context, entry models.BackupLog) {
	if err := b.db.WithContext(ctx).Create(&entry).Error; err != nil {
		b.logger.Warn().Err(err).Str("file", entry.Filename).Msg("failed to record backup run")
	}
}

func (b *BackupLogs) Recent(ctx context.Context, limit int) ([]models.BackupLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 30
	}
	var entries []models.BackupLog
	err := b.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
