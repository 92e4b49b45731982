package services

import (
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/pkg/apperrors"
)

type NotificationService interface {
	GetUserNotifications(userID string, page, pageSize int) ([]models.Notification, int64, error)
	MarkAsRead(notificationID, userID string) error
	GetUnreadCount(userID string) (int64, error)
}

type NotificationServiceImpl struct {
	notifications repositories.NotificationRepository
}

func NewNotificationService(notifications repositories.NotificationRepository) NotificationService {
	return &NotificationServiceImpl{notifications: notifications}
}

func (s *NotificationServiceImpl) GetUserNotifications(userID string, page, pageSize int) ([]models.Notification, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	list, total, err := s.notifications.FindByUser(userID, page, pageSize)
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return list, total, nil
}

func (s *NotificationServiceImpl) MarkAsRead(notificationID, userID string) error {
	if err := s.notifications.MarkAsRead(notificationID, userID); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *NotificationServiceImpl) GetUnreadCount(userID string) (int64, error) {
	count, err := s.notifications.GetUnreadCount(userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return count, nil
}
