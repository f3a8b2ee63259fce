package models

import (
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the portal tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SystemPreference{},
		&AuditLog{},
		&BackupLog{},
		&NotificationLog{},
		&VoucherBatch{},
		&VoucherItem{},
	)
}
