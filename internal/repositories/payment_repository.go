package repositories

import (
	"errors"
	"time"

	"chikondi_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound = errors.New("payment record not found")
)

// PaymentCriteria - фильтры админского листинга платежей
type PaymentCriteria struct {
	UserID   string               `form:"user_id"`
	Status   models.PaymentStatus `form:"status"`
	Tier     string               `form:"tier"`
	Currency string               `form:"currency"`
	Page     int                  `form:"page"`
	PageSize int                  `form:"page_size"`
}

// RevenueStats - агрегаты по завершенным платежам
type RevenueStats struct {
	TotalCompleted int64            `json:"total_completed"`
	TotalFailed    int64            `json:"total_failed"`
	TotalPending   int64            `json:"total_pending"`
	GrossRevenue   int64            `json:"gross_revenue"`
	TodayRevenue   int64            `json:"today_revenue"`
	ByTier         map[string]int64 `json:"by_tier"`
}

type PaymentRepository interface {
	Create(payment *models.PaymentRecord) error
	FindByTxRef(txRef string) (*models.PaymentRecord, error)
	FindByUser(userID string, page, pageSize int) ([]models.PaymentRecord, int64, error)
	FindAll(criteria PaymentCriteria) ([]models.PaymentRecord, int64, error)

	// MarkSettled - единственная точка сериализации конкурентных
	// settlement-попыток: условный апдейт проходит только если строка
	// еще не completed. false = кто-то другой уже завершил платеж.
	MarkSettled(txRef string, status models.PaymentStatus, metadata datatypes.JSON) (bool, error)

	// FindStalePending - зависшие pending-платежи для фонового реконсайлера
	FindStalePending(olderThan time.Time, limit int) ([]models.PaymentRecord, error)

	GetRevenueStats() (*RevenueStats, error)
}

type PaymentRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &PaymentRepositoryImpl{db: db}
}

func (r *PaymentRepositoryImpl) Create(payment *models.PaymentRecord) error {
	return r.db.Create(payment).Error
}

func (r *PaymentRepositoryImpl) FindByTxRef(txRef string) (*models.PaymentRecord, error) {
	var payment models.PaymentRecord
	err := r.db.First(&payment, "tx_ref = ?", txRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) FindByUser(userID string, page, pageSize int) ([]models.PaymentRecord, int64, error) {
	query := r.db.Model(&models.PaymentRecord{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.PaymentRecord
	err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&payments).Error

	return payments, total, err
}

func (r *PaymentRepositoryImpl) FindAll(criteria PaymentCriteria) ([]models.PaymentRecord, int64, error) {
	query := r.db.Model(&models.PaymentRecord{})

	if criteria.UserID != "" {
		query = query.Where("user_id = ?", criteria.UserID)
	}
	if criteria.Status != "" {
		query = query.Where("status = ?", criteria.Status)
	}
	if criteria.Tier != "" {
		query = query.Where("tier = ?", criteria.Tier)
	}
	if criteria.Currency != "" {
		query = query.Where("currency = ?", criteria.Currency)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := criteria.Page
	if page < 1 {
		page = 1
	}
	pageSize := criteria.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var payments []models.PaymentRecord
	err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&payments).Error

	return payments, total, err
}

func (r *PaymentRepositoryImpl) MarkSettled(txRef string, status models.PaymentStatus, metadata datatypes.JSON) (bool, error) {
	updates := map[string]any{
		"status": status,
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}

	result := r.db.Model(&models.PaymentRecord{}).
		Where("tx_ref = ? AND status <> ?", txRef, models.PaymentStatusCompleted).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *PaymentRepositoryImpl) FindStalePending(olderThan time.Time, limit int) ([]models.PaymentRecord, error) {
	var payments []models.PaymentRecord
	err := r.db.
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepositoryImpl) GetRevenueStats() (*RevenueStats, error) {
	stats := &RevenueStats{ByTier: make(map[string]int64)}

	type statusCount struct {
		Status models.PaymentStatus
		Count  int64
		Sum    int64
	}
	var byStatus []statusCount
	err := r.db.Model(&models.PaymentRecord{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS sum").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}

	for _, row := range byStatus {
		switch row.Status {
		case models.PaymentStatusCompleted:
			stats.TotalCompleted = row.Count
			stats.GrossRevenue = row.Sum
		case models.PaymentStatusFailed:
			stats.TotalFailed = row.Count
		case models.PaymentStatusPending:
			stats.TotalPending = row.Count
		}
	}

	today := time.Now().Truncate(24 * time.Hour)
	err = r.db.Model(&models.PaymentRecord{}).
		Where("status = ? AND updated_at >= ?", models.PaymentStatusCompleted, today).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.TodayRevenue).Error
	if err != nil {
		return nil, err
	}

	type tierSum struct {
		Tier string
		Sum  int64
	}
	var byTier []tierSum
	err = r.db.Model(&models.PaymentRecord{}).
		Where("status = ?", models.PaymentStatusCompleted).
		Select("tier, COALESCE(SUM(amount), 0) AS sum").
		Group("tier").
		Scan(&byTier).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byTier {
		stats.ByTier[row.Tier] = row.Sum
	}

	return stats, nil
}
