package models

import (
	"gorm.io/datatypes"
)

// PaymentRecord - одна попытка внешнего платежа через PayChangu.
// Запись создается со статусом pending и никогда не удаляется (аудит).
type PaymentRecord struct {
	BaseModel
	TxRef    string        `gorm:"uniqueIndex;not null"`
	UserID   string        `gorm:"type:uuid;not null;index"`
	Amount   int64         `gorm:"not null"` // целые единицы валюты
	Currency string        `gorm:"size:3;not null"`
	Method   string        `gorm:"default:'paychangu'"`
	Tier     string        `gorm:"not null;index"` // premium/platinum/topup/donation
	Status   PaymentStatus `gorm:"default:'pending';index"`

	// Свободные метаданные: email, имена, entitlement days,
	// verify-ответы провайдера, причины отказа, аудит-отметки.
	Metadata datatypes.JSON `gorm:"type:jsonb"`
}

// IsTerminal сообщает, достиг ли платеж конечного состояния
func (p *PaymentRecord) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}
