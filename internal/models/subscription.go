package models

import (
	"time"
)

// UserSubscription - текущий оплаченный тариф пользователя.
// На пользователя существует не больше одной активной записи:
// активация нового тарифа обновляет строку, а не добавляет новую.
type UserSubscription struct {
	BaseModel
	UserID    string `gorm:"type:uuid;not null;index"`
	Tier      string `gorm:"not null"`
	IsActive  bool   `gorm:"default:true;index"`
	StartDate time.Time
	EndDate   time.Time
}

// Expired сообщает, истекла ли подписка на момент now
func (s *UserSubscription) Expired(now time.Time) bool {
	return now.After(s.EndDate)
}
