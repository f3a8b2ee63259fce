package models

import (
	"time"
)

// BackupLog is one settings backup run, scheduled or manual.
type BackupLog struct {
	ID           uint      `json:"id" gorm:"column:id;primaryKey"`
	Trigger      string    `json:"trigger" gorm:"column:trigger;size:20"` // manual, scheduled
	Filename     string    `json:"filename" gorm:"column:filename;size:255"`
	FileSize     int       `json:"file_size" gorm:"column:file_size"`
	Host         string    `json:"host" gorm:"column:host;size:255"`
	Status       string    `json:"status" gorm:"column:status;size:20"` // success, failed
	ErrorMessage string    `json:"error_message" gorm:"column:error_message;size:500"`
	Pruned       int       `json:"pruned" gorm:"column:pruned"`
	StartedAt    time.Time `json:"started_at" gorm:"column:started_at;index"`
	CompletedAt  time.Time `json:"completed_at" gorm:"column:completed_at"`
}

func (BackupLog) TableName() string {
	return "backup_logs"
}
