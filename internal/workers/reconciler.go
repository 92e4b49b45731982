package workers

import (
	"context"
	"time"

	"chikondi_backend/internal/logger"
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/internal/services"
)

// Reconciler - страховка от потерянных вебхуков: периодически
// прогоняет зависшие pending-платежи через общий settlement.
type Reconciler struct {
	payments   repositories.PaymentRepository
	settlement services.SettlementService

	interval  time.Duration
	minAge    time.Duration // моложе этого не трогаем, пользователь еще платит
	batchSize int
}

func NewReconciler(payments repositories.PaymentRepository, settlement services.SettlementService) *Reconciler {
	return &Reconciler{
		payments:   payments,
		settlement: settlement,
		interval:   5 * time.Minute,
		minAge:     10 * time.Minute,
		batchSize:  50,
	}
}

func (w *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		logger.Info("payment reconciler started",
			"interval", w.interval.String(), "min_age", w.minAge.String())

		for {
			select {
			case <-ctx.Done():
				logger.Info("payment reconciler stopped")
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

func (w *Reconciler) runOnce(ctx context.Context) {
	stale, err := w.payments.FindStalePending(time.Now().Add(-w.minAge), w.batchSize)
	if err != nil {
		logger.WorkerLog("reconciler", "find stale pending", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	var settled, failed, pending int
	for _, record := range stale {
		result, err := w.settlement.Settle(ctx, record.TxRef, services.SourceReconciler)
		if err != nil {
			logger.WorkerLog("reconciler", "settle "+record.TxRef, err)
			continue
		}
		switch {
		case result.Already:
			settled++
		case result.Status == models.PaymentStatusCompleted:
			settled++
		case result.Status == models.PaymentStatusFailed:
			failed++
		default:
			pending++
		}
	}

	logger.Info("reconciler pass finished",
		"checked", len(stale), "settled", settled, "failed", failed, "still_pending", pending)
}
