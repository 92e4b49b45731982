package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	BaseModel
	UserID  string `gorm:"type:uuid;not null;index"`
	Type    string `gorm:"not null"` // "payment_completed", "wallet_credited", "payment_failed"
	Title   string `gorm:"not null"`
	Message string
	Data    datatypes.JSON `gorm:"type:jsonb"` // {"tx_ref": "...", "amount": ...}
	IsRead  bool           `gorm:"default:false"`
	ReadAt  *time.Time
}
