package models

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleMember UserRole = "member"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// PaymentStatus - жизненный цикл платежа.
// Переходы только pending→completed и pending→failed; completed терминален.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// WalletTxType - тип записи в истории кошелька
type WalletTxType string

const (
	WalletTxTopup      WalletTxType = "topup"
	WalletTxGift       WalletTxType = "gift"
	WalletTxFee        WalletTxType = "fee"
	WalletTxWithdrawal WalletTxType = "withdrawal"
)
