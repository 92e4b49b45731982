package models

import (
	"gorm.io/datatypes"
)

// WalletTransaction - append-only запись истории кошелька.
// TxRef несет уникальный индекс: это ключ идемпотентности settlement-а,
// БД гарантирует не больше одной записи на платеж.
type WalletTransaction struct {
	BaseModel
	UserID      string       `gorm:"type:uuid;not null;index"`
	Type        WalletTxType `gorm:"not null;index"`
	GrossAmount int64        `gorm:"not null"`
	Fee         int64        `gorm:"default:0"`
	NetAmount   int64        `gorm:"not null"`
	Status      string       `gorm:"default:'completed'"`
	TxRef       string       `gorm:"uniqueIndex;not null"`

	Metadata datatypes.JSON `gorm:"type:jsonb"`
}
