package models

import "time"

// Profile - анкета пользователя. Из всего профиля платежному
// контуру принадлежат только WalletBalance и Tier; остальные поля
// читает модуль знакомств.
type Profile struct {
	BaseModel
	UserID      string `gorm:"type:uuid;uniqueIndex;not null"`
	DisplayName string `gorm:"not null"`
	Gender      string
	BirthDate   *time.Time
	City        string
	Bio         string

	// Текущий оплаченный тариф ("" или "basic" = бесплатный)
	Tier string `gorm:"default:'basic'"`

	// Баланс кошелька в целых единицах валюты (MWK).
	// Мутируется только дельтой внутри транзакции settlement-а.
	WalletBalance int64 `gorm:"default:0"`
}
