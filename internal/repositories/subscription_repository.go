package repositories

import (
	"errors"
	"time"

	"chikondi_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type SubscriptionRepository interface {
	// ActivateTier - активация или продление подписки вместе с
	// обновлением тарифа в профиле, одной транзакцией
	ActivateTier(userID, tier string, entitlementDays int) (*models.UserSubscription, error)
	FindActiveByUser(userID string) (*models.UserSubscription, error)

	// ExpireOverdue - деактивация просроченных подписок и откат
	// профилей на базовый тариф, возвращает число затронутых
	ExpireOverdue(now time.Time) (int64, error)
}

type SubscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{db: db}
}

func (r *SubscriptionRepositoryImpl) ActivateTier(userID, tier string, entitlementDays int) (*models.UserSubscription, error) {
	now := time.Now()
	var result *models.UserSubscription

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var sub models.UserSubscription
		err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&sub).Error

		endDate := now.AddDate(0, 0, entitlementDays)

		switch {
		case err == nil:
			// повторная покупка той же подписки продлевает от
			// текущей даты окончания, смена тарифа начинает заново
			if sub.Tier == tier && sub.EndDate.After(now) {
				endDate = sub.EndDate.AddDate(0, 0, entitlementDays)
			}
			sub.Tier = tier
			sub.StartDate = now
			sub.EndDate = endDate
			sub.IsActive = true
			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
			result = &sub
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub = models.UserSubscription{
				UserID:    userID,
				Tier:      tier,
				IsActive:  true,
				StartDate: now,
				EndDate:   endDate,
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
			result = &sub
		default:
			return err
		}

		return tx.Model(&models.Profile{}).
			Where("user_id = ?", userID).
			Update("tier", tier).Error
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SubscriptionRepositoryImpl) FindActiveByUser(userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) ExpireOverdue(now time.Time) (int64, error) {
	var expired []models.UserSubscription
	err := r.db.Where("is_active = ? AND end_date < ?", true, now).Find(&expired).Error
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var count int64
	err = r.db.Transaction(func(tx *gorm.DB) error {
		for _, sub := range expired {
			res := tx.Model(&models.UserSubscription{}).
				Where("id = ? AND is_active = ?", sub.ID, true).
				Update("is_active", false)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := tx.Model(&models.Profile{}).
				Where("user_id = ?", sub.UserID).
				Update("tier", models.TierBasic).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})

	return count, err
}
