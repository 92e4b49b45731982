package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chikondi_backend/internal/config"
	"chikondi_backend/internal/logger"
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/paychangu"
	"chikondi_backend/internal/ratelimit"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

// CheckoutInput - запрос на создание платежа от клиента.
// Сумма приходит от клиента, но для фиксированных тарифов сервер
// сверяет ее с прайсом и отвергает любое расхождение. Контактные
// поля опциональны: пустые добираются из аккаунта и профиля.
type CheckoutInput struct {
	Tier        string `json:"tier" validate:"required,payment_tier"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,currency_code"`
	Email       string `json:"email" validate:"omitempty,email"`
	FirstName   string `json:"firstName" validate:"omitempty,max=64"`
	LastName    string `json:"lastName" validate:"omitempty,max=64"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,mw_phone"`
}

type CheckoutOutput struct {
	Success     bool   `json:"success"`
	TxRef       string `json:"tx_ref"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Tier        string `json:"tier"`
}

// WalletOverview - баланс плюс страница истории кошелька
type WalletOverview struct {
	Balance      int64                      `json:"balance"`
	Transactions []models.WalletTransaction `json:"transactions"`
	Total        int64                      `json:"total"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, userID string, input CheckoutInput) (*CheckoutOutput, error)
	History(userID string, page, pageSize int) ([]models.PaymentRecord, int64, error)
	Wallet(userID string, page, pageSize int) (*WalletOverview, error)
	ActiveSubscription(userID string) (*models.UserSubscription, error)
	AdminList(criteria repositories.PaymentCriteria) ([]models.PaymentRecord, int64, error)
	AdminStats() (*repositories.RevenueStats, error)
}

type CheckoutServiceImpl struct {
	payments      repositories.PaymentRepository
	wallets       repositories.WalletRepository
	subscriptions repositories.SubscriptionRepository
	users         repositories.UserRepository
	gateway       paychangu.Client
	limiter       ratelimit.Limiter
	cfg           *config.Config
}

func NewCheckoutService(
	payments repositories.PaymentRepository,
	wallets repositories.WalletRepository,
	subscriptions repositories.SubscriptionRepository,
	users repositories.UserRepository,
	gateway paychangu.Client,
	limiter ratelimit.Limiter,
	cfg *config.Config,
) CheckoutService {
	return &CheckoutServiceImpl{
		payments:      payments,
		wallets:       wallets,
		subscriptions: subscriptions,
		users:         users,
		gateway:       gateway,
		limiter:       limiter,
		cfg:           cfg,
	}
}

func (s *CheckoutServiceImpl) Checkout(ctx context.Context, userID string, input CheckoutInput) (*CheckoutOutput, error) {
	if !s.limiter.Allow("checkout:" + userID) {
		return nil, apperrors.ErrRateLimited
	}

	if err := s.validatePricing(input); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.NewUnauthorizedError("User not found")
		}
		return nil, apperrors.InternalError(err)
	}

	txRef := newTxRef(userID)

	email := input.Email
	if email == "" {
		email = user.Email
	}
	firstName := input.FirstName
	if firstName == "" && user.Profile != nil {
		firstName = user.Profile.DisplayName
	}

	meta := map[string]any{
		"email": email,
	}
	if firstName != "" {
		meta["first_name"] = firstName
	}
	if input.LastName != "" {
		meta["last_name"] = input.LastName
	}
	if input.PhoneNumber != "" {
		meta["phone"] = input.PhoneNumber
	}
	if info, ok := models.LookupTier(input.Tier); ok {
		meta["entitlement_days"] = info.EntitlementDays
	}
	metaJSON, _ := json.Marshal(meta)

	// pending-запись сохраняется до обращения к провайдеру: если
	// checkout упадет, останется след для реконсайлера и саппорта
	record := &models.PaymentRecord{
		TxRef:    txRef,
		UserID:   userID,
		Amount:   input.Amount,
		Currency: input.Currency,
		Tier:     input.Tier,
		Status:   models.PaymentStatusPending,
		Metadata: datatypes.JSON(metaJSON),
	}
	if err := s.payments.Create(record); err != nil {
		return nil, apperrors.InternalError(err)
	}

	session, err := s.gateway.CreateCheckout(ctx, paychangu.CheckoutRequest{
		Amount:      input.Amount,
		Currency:    input.Currency,
		TxRef:       txRef,
		Email:       email,
		FirstName:   firstName,
		LastName:    input.LastName,
		CallbackURL: s.cfg.PayChangu.CallbackURL,
		ReturnURL:   s.cfg.PayChangu.ReturnURL,
		Meta:        map[string]any{"tier": input.Tier, "user_id": userID},
	})
	if err != nil {
		logger.CtxWithError(ctx, "checkout session creation failed", err, "tx_ref", txRef)
		return nil, err
	}

	return &CheckoutOutput{
		Success:     true,
		TxRef:       txRef,
		CheckoutURL: session.CheckoutURL,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Tier:        input.Tier,
	}, nil
}

// validatePricing - серверная проверка цены. Фиксированные тарифы
// требуют точного совпадения с прайсом, свободные суммы ограничены
// границами по валюте.
func (s *CheckoutServiceImpl) validatePricing(input CheckoutInput) error {
	if !models.SupportedCurrencies[input.Currency] {
		return apperrors.ErrInvalidCurrency
	}

	switch input.Tier {
	case models.TierTopup:
		return checkBounds(input.Amount, models.TopupBounds[input.Currency])
	case models.TierDonation:
		return checkBounds(input.Amount, models.DonationBounds[input.Currency])
	default:
		info, ok := models.LookupTier(input.Tier)
		if !ok {
			return apperrors.ErrInvalidTier
		}
		price, ok := info.Prices[input.Currency]
		if !ok {
			return apperrors.ErrInvalidCurrency
		}
		if input.Amount != price {
			return apperrors.ErrInvalidAmount.WithDetails(map[string]any{
				"expected": price,
				"got":      input.Amount,
			})
		}
		return nil
	}
}

func checkBounds(amount int64, bounds models.AmountBounds) error {
	if amount < bounds.Min || amount > bounds.Max {
		return apperrors.ErrInvalidAmount.WithDetails(map[string]any{
			"min": bounds.Min,
			"max": bounds.Max,
		})
	}
	return nil
}

// newTxRef - уникальная ссылка платежа: фрагмент id пользователя,
// миллисекунды и случайный хвост. Уникальность страхует индекс в БД.
func newTxRef(userID string) string {
	frag := userID
	if len(frag) > 8 {
		frag = frag[:8]
	}
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("CHK-%s-%d-%s", frag, time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func (s *CheckoutServiceImpl) History(userID string, page, pageSize int) ([]models.PaymentRecord, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	payments, total, err := s.payments.FindByUser(userID, page, pageSize)
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return payments, total, nil
}

func (s *CheckoutServiceImpl) Wallet(userID string, page, pageSize int) (*WalletOverview, error) {
	page, pageSize = normalizePage(page, pageSize)

	balance, err := s.wallets.GetBalance(userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	txs, total, err := s.wallets.FindByUser(userID, page, pageSize)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &WalletOverview{Balance: balance, Transactions: txs, Total: total}, nil
}

func (s *CheckoutServiceImpl) ActiveSubscription(userID string) (*models.UserSubscription, error) {
	sub, err := s.subscriptions.FindActiveByUser(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}
	return sub, nil
}

func (s *CheckoutServiceImpl) AdminList(criteria repositories.PaymentCriteria) ([]models.PaymentRecord, int64, error) {
	payments, total, err := s.payments.FindAll(criteria)
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return payments, total, nil
}

func (s *CheckoutServiceImpl) AdminStats() (*repositories.RevenueStats, error) {
	stats, err := s.payments.GetRevenueStats()
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return stats, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
