package repositories

import (
	"encoding/json"
	"fmt"

	"chikondi_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(notification *models.Notification) error
	FindByUser(userID string, page, pageSize int) ([]models.Notification, int64, error)
	MarkAsRead(notificationID, userID string) error
	GetUnreadCount(userID string) (int64, error)

	CreatePaymentCompletedNotification(userID, txRef, tier string, amount int64, currency string) error
	CreateWalletCreditedNotification(userID, txRef string, net int64, currency string) error
	CreatePaymentFailedNotification(userID, txRef string) error
}

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

func (r *NotificationRepositoryImpl) FindByUser(userID string, page, pageSize int) ([]models.Notification, int64, error) {
	query := r.db.Model(&models.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *NotificationRepositoryImpl) MarkAsRead(notificationID, userID string) error {
	return r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{"is_read": true, "read_at": gorm.Expr("NOW()")}).Error
}

func (r *NotificationRepositoryImpl) GetUnreadCount(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) CreatePaymentCompletedNotification(userID, txRef, tier string, amount int64, currency string) error {
	data, _ := json.Marshal(map[string]any{
		"tx_ref":   txRef,
		"tier":     tier,
		"amount":   amount,
		"currency": currency,
	})
	return r.Create(&models.Notification{
		UserID:  userID,
		Type:    "payment_completed",
		Title:   "Payment successful",
		Message: fmt.Sprintf("Your %s payment of %d %s was received", tier, amount, currency),
		Data:    datatypes.JSON(data),
	})
}

func (r *NotificationRepositoryImpl) CreateWalletCreditedNotification(userID, txRef string, net int64, currency string) error {
	data, _ := json.Marshal(map[string]any{
		"tx_ref": txRef,
		"net":    net,
	})
	return r.Create(&models.Notification{
		UserID:  userID,
		Type:    "wallet_credited",
		Title:   "Wallet credited",
		Message: fmt.Sprintf("%d %s has been added to your wallet", net, currency),
		Data:    datatypes.JSON(data),
	})
}

func (r *NotificationRepositoryImpl) CreatePaymentFailedNotification(userID, txRef string) error {
	data, _ := json.Marshal(map[string]any{"tx_ref": txRef})
	return r.Create(&models.Notification{
		UserID:  userID,
		Type:    "payment_failed",
		Title:   "Payment failed",
		Message: "We could not confirm your payment. If you were charged, contact support.",
		Data:    datatypes.JSON(data),
	})
}
