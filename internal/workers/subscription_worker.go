package workers

import (
	"context"
	"time"

	"chikondi_backend/internal/logger"
	"chikondi_backend/internal/repositories"
)

// SubscriptionExpiryWorker снимает просроченные подписки и возвращает
// профили на базовый тариф
type SubscriptionExpiryWorker struct {
	subscriptions repositories.SubscriptionRepository
	interval      time.Duration
}

func NewSubscriptionExpiryWorker(subscriptions repositories.SubscriptionRepository) *SubscriptionExpiryWorker {
	return &SubscriptionExpiryWorker{
		subscriptions: subscriptions,
		interval:      time.Hour,
	}
}

func (w *SubscriptionExpiryWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		logger.Info("subscription expiry worker started", "interval", w.interval.String())

		for {
			select {
			case <-ctx.Done():
				logger.Info("subscription expiry worker stopped")
				return
			case <-ticker.C:
				count, err := w.subscriptions.ExpireOverdue(time.Now())
				if err != nil {
					logger.WorkerLog("subscription_expiry", "expire overdue", err)
					continue
				}
				if count > 0 {
					logger.Info("expired subscriptions downgraded", "count", count)
				}
			}
		}
	}()
}
