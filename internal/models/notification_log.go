package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationLog is one WhatsApp delivery attempt to a technician or
// customer.
type NotificationLog struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Recipient string    `gorm:"column:recipient;size:100;not null;index" json:"recipient"`
	Priority  string    `gorm:"column:priority;size:10;not null;default:normal" json:"priority"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
	Success   bool      `gorm:"column:success;not null" json:"success"`
	Error     string    `gorm:"column:error;type:text" json:"error,omitempty"`
	SentAt    time.Time `gorm:"column:sent_at;not null;index" json:"sent_at"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}

func (l *NotificationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
