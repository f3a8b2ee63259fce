package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is one successful state-changing admin request.
type AuditLog struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Actor     string    `gorm:"column:actor;size:100;index" json:"actor"`
	Role      string    `gorm:"column:role;size:20" json:"role"`
	Action    string    `gorm:"column:action;size:20;not null;index" json:"action"`
	Entity    string    `gorm:"column:entity;size:50;index" json:"entity"`
	Method    string    `gorm:"column:method;size:10" json:"method"`
	Path      string    `gorm:"column:path;size:255" json:"path"`
	Status    int       `gorm:"column:status" json:"status"`
	IPAddress string    `gorm:"column:ip_address;size:50" json:"ip_address"`
	UserAgent string    `gorm:"column:user_agent;size:255" json:"user_agent"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
