package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chikondi_backend/internal/logger"
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/paychangu"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

// TrustSource - откуда пришел сигнал о платеже. Статусу из сигнала
// мы не верим ни в одном случае, источник влияет только на обработку
// неизвестного tx_ref и на аудит-отметку в метаданных.
type TrustSource string

const (
	SourceWebhook    TrustSource = "webhook"
	SourcePoll       TrustSource = "poll"
	SourceReconciler TrustSource = "reconciler"
	SourceAdmin      TrustSource = "admin"
)

// SettlementResult - итог одной попытки завершения платежа
type SettlementResult struct {
	TxRef          string               `json:"tx_ref"`
	Status         models.PaymentStatus `json:"status"`
	ProviderStatus string               `json:"provider_status,omitempty"`
	Already        bool                 `json:"already_settled"`
}

type SettlementService interface {
	// Settle - единая точка завершения платежа для вебхука, поллинга
	// и реконсайлера. Идемпотентен: повторные вызовы по завершенному
	// платежу возвращают Already=true и не трогают кошелек/подписку.
	Settle(ctx context.Context, txRef string, source TrustSource) (*SettlementResult, error)
}

type EmailSender interface {
	SendPaymentReceipt(email, displayName, txRef, tier string, amount int64, currency string) error
}

type SettlementServiceImpl struct {
	payments      repositories.PaymentRepository
	wallets       repositories.WalletRepository
	subscriptions repositories.SubscriptionRepository
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	gateway       paychangu.Client
	email         EmailSender // nil = квитанции отключены
}

func NewSettlementService(
	payments repositories.PaymentRepository,
	wallets repositories.WalletRepository,
	subscriptions repositories.SubscriptionRepository,
	notifications repositories.NotificationRepository,
	users repositories.UserRepository,
	gateway paychangu.Client,
	email EmailSender,
) SettlementService {
	return &SettlementServiceImpl{
		payments:      payments,
		wallets:       wallets,
		subscriptions: subscriptions,
		notifications: notifications,
		users:         users,
		gateway:       gateway,
		email:         email,
	}
}

// Статусы провайдера, которые считаем успехом / отказом.
// Все остальное — платеж еще в полете, остаемся в pending.
var (
	providerSuccessStatuses = map[string]bool{
		"success": true, "successful": true, "completed": true, "paid": true,
	}
	providerFailedStatuses = map[string]bool{
		"failed": true, "cancelled": true, "canceled": true,
		"declined": true, "reversed": true, "expired": true,
	}
)

func mapProviderStatus(providerStatus string) (models.PaymentStatus, bool) {
	s := strings.ToLower(strings.TrimSpace(providerStatus))
	if providerSuccessStatuses[s] {
		return models.PaymentStatusCompleted, true
	}
	if providerFailedStatuses[s] {
		return models.PaymentStatusFailed, true
	}
	return models.PaymentStatusPending, false
}

func (s *SettlementServiceImpl) Settle(ctx context.Context, txRef string, source TrustSource) (*SettlementResult, error) {
	log := logger.FromContext(logger.WithTxRef(ctx, txRef)).With("source", string(source))

	record, err := s.payments.FindByTxRef(txRef)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	if record.Status == models.PaymentStatusCompleted {
		log.Info("payment already settled, skipping")
		return &SettlementResult{
			TxRef:   txRef,
			Status:  models.PaymentStatusCompleted,
			Already: true,
		}, nil
	}
	wasFailed := record.Status == models.PaymentStatusFailed

	// Статус всегда перепроверяем у провайдера, что бы ни принес сигнал
	verification, err := s.gateway.Verify(ctx, txRef)
	if err != nil {
		return nil, err
	}

	target, settled := mapProviderStatus(verification.ProviderStatus)
	if !settled {
		log.Info("payment still pending at provider",
			"provider_status", verification.ProviderStatus)
		return &SettlementResult{
			TxRef:          txRef,
			Status:         models.PaymentStatusPending,
			ProviderStatus: verification.ProviderStatus,
		}, nil
	}

	mismatchReason := ""
	if target == models.PaymentStatusCompleted {
		if mismatchReason = s.crossCheck(record, verification); mismatchReason != "" {
			// провайдер подтвердил не ту сумму: зачислять нельзя,
			// платеж закрывается как failed для ручного разбора
			log.Error("settlement amount mismatch",
				"expected_amount", record.Amount,
				"verified_amount", verification.Amount,
				"reason", mismatchReason)
			target = models.PaymentStatusFailed
		}
	}

	metadata := mergeSettlementMetadata(record.Metadata, verification, source, mismatchReason)

	won, err := s.payments.MarkSettled(txRef, target, metadata)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !won {
		// условный апдейт не прошел: параллельный settlement успел первым
		log.Info("lost settlement race, payment already completed")
		return &SettlementResult{
			TxRef:          txRef,
			Status:         models.PaymentStatusCompleted,
			ProviderStatus: verification.ProviderStatus,
			Already:        true,
		}, nil
	}

	result := &SettlementResult{
		TxRef:          txRef,
		Status:         target,
		ProviderStatus: verification.ProviderStatus,
	}

	if target == models.PaymentStatusFailed {
		// повторная проверка уже проваленного платежа не плодит
		// дубликаты уведомлений
		if !wasFailed {
			if nerr := s.notifications.CreatePaymentFailedNotification(record.UserID, txRef); nerr != nil {
				log.Warn("failed to create payment_failed notification", "error", nerr)
			}
		}
		log.Info("payment settled as failed",
			"provider_status", verification.ProviderStatus)
		return result, nil
	}

	if err := s.applyEntitlement(record); err != nil {
		// статус уже completed, откатывать нечего: зачисление
		// защищено своим tx_ref, админ может повторить вручную
		log.Error("entitlement grant failed after settlement", "error", err)
		return result, apperrors.InternalError(err)
	}

	s.notifySettled(log, record)
	log.Info("payment settled as completed", "tier", record.Tier, "amount", record.Amount)
	return result, nil
}

// crossCheck сверяет подтвержденную провайдером сумму и валюту с
// ожидаемыми. Допуск в одну единицу покрывает округление на стороне
// провайдера, все сверх этого - повод не зачислять.
func (s *SettlementServiceImpl) crossCheck(record *models.PaymentRecord, v *paychangu.VerifyResult) string {
	diff := record.Amount - v.Amount
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		return "amount_mismatch"
	}
	if v.Currency != "" && !strings.EqualFold(v.Currency, record.Currency) {
		return "currency_mismatch"
	}
	return ""
}

func (s *SettlementServiceImpl) applyEntitlement(record *models.PaymentRecord) error {
	switch record.Tier {
	case models.TierTopup:
		_, err := s.wallets.CreditTopup(
			record.UserID, record.TxRef, models.WalletTxTopup,
			record.Amount, 0, record.Metadata,
		)
		if errors.Is(err, repositories.ErrAlreadyCredited) {
			return nil
		}
		return err
	case models.TierDonation:
		// пожертвование ничего не дает сверх самого платежа
		return nil
	default:
		info, ok := models.LookupTier(record.Tier)
		if !ok {
			return errors.New("completed payment references unknown tier: " + record.Tier)
		}
		_, err := s.subscriptions.ActivateTier(record.UserID, record.Tier, info.EntitlementDays)
		return err
	}
}

// notifySettled - уведомление и квитанция после успешного зачисления.
// Оба канала best-effort, их сбои не влияют на результат settlement.
func (s *SettlementServiceImpl) notifySettled(log *slog.Logger, record *models.PaymentRecord) {
	var nerr error
	if record.Tier == models.TierTopup {
		nerr = s.notifications.CreateWalletCreditedNotification(
			record.UserID, record.TxRef, record.Amount, record.Currency)
	} else {
		nerr = s.notifications.CreatePaymentCompletedNotification(
			record.UserID, record.TxRef, record.Tier, record.Amount, record.Currency)
	}
	if nerr != nil {
		log.Warn("failed to create settlement notification", "error", nerr)
	}

	if s.email == nil {
		return
	}
	user, err := s.users.FindByID(record.UserID)
	if err != nil {
		log.Warn("cannot load user for receipt email", "error", err)
		return
	}
	displayName := user.Email
	if user.Profile != nil && user.Profile.DisplayName != "" {
		displayName = user.Profile.DisplayName
	}
	if err := s.email.SendPaymentReceipt(
		user.Email, displayName, record.TxRef,
		record.Tier, record.Amount, record.Currency,
	); err != nil {
		log.Warn("failed to send receipt email", "error", err)
	}
}

func mergeSettlementMetadata(existing datatypes.JSON, v *paychangu.VerifyResult, source TrustSource, mismatchReason string) datatypes.JSON {
	merged := map[string]any{}
	if len(existing) > 0 {
		// метаданные пишем только мы, битый JSON здесь не появляется
		_ = json.Unmarshal(existing, &merged)
	}
	merged["provider_status"] = v.ProviderStatus
	merged["verified_amount"] = v.Amount
	merged["verified_currency"] = v.Currency
	merged["settled_by"] = string(source)
	merged["settled_at"] = time.Now().UTC().Format(time.RFC3339)
	if mismatchReason != "" {
		merged["failure_reason"] = mismatchReason
	}
	out, _ := json.Marshal(merged)
	return datatypes.JSON(out)
}
