package models

import (
	"time"
)

// VoucherBatch records one voucher generation run.
type VoucherBatch struct {
	ID        string        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Profile   string        `gorm:"column:profile;size:100;not null" json:"profile"`
	Type      string        `gorm:"column:type;size:20;not null" json:"type"`
	Price     string        `gorm:"column:price;size:50" json:"price,omitempty"`
	Requested int           `gorm:"column:requested;not null" json:"requested"`
	Created   int           `gorm:"column:created;not null" json:"created"`
	Failed    int           `gorm:"column:failed;not null" json:"failed"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
	Vouchers  []VoucherItem `gorm:"foreignKey:BatchID" json:"vouchers,omitempty"`
}

func (VoucherBatch) TableName() string {
	return "voucher_batches"
}

type VoucherItem struct {
	ID       uint   `gorm:"column:id;primaryKey" json:"id"`
	BatchID  string `gorm:"column:batch_id;type:uuid;not null;index" json:"batch_id"`
	Username string `gorm:"column:username;size:50;not null;index" json:"username"`
	Password string `gorm:"column:password;size:50" json:"password"`
	Status   string `gorm:"column:status;size:20;not null" json:"status"`
	Error    string `gorm:"column:error;type:text" json:"error,omitempty"`
}

func (VoucherItem) TableName() string {
	return "voucher_items"
}
