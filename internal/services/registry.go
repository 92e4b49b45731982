package services

import (
	"time"

	"chikondi_backend/internal/config"
	"chikondi_backend/internal/paychangu"
	"chikondi_backend/internal/ratelimit"
	"chikondi_backend/internal/repositories"

	"gorm.io/gorm"
)

// ServiceContainer - все сервисы приложения в одном месте
type ServiceContainer struct {
	Auth         AuthService
	Checkout     CheckoutService
	Settlement   SettlementService
	Notification NotificationService

	// Лимитеры пробрасываются наружу: verify-ручке и вебхуку нужны
	// свои окна, отдельные от checkout
	CheckoutLimiter ratelimit.Limiter
	VerifyLimiter   ratelimit.Limiter
	WebhookLimiter  ratelimit.Limiter
}

func NewServiceContainer(db *gorm.DB, gateway paychangu.Client, email EmailSender, cfg *config.Config) *ServiceContainer {
	paymentRepo := repositories.NewPaymentRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	userRepo := repositories.NewUserRepository(db)

	checkoutLimiter := ratelimit.NewSlidingWindow(cfg.Limits.CheckoutPerMinute, time.Minute)
	verifyLimiter := ratelimit.NewSlidingWindow(cfg.Limits.VerifyPerMinute, time.Minute)
	webhookLimiter := ratelimit.NewSlidingWindow(1, time.Duration(cfg.Limits.WebhookCooldownMS)*time.Millisecond)

	return &ServiceContainer{
		Auth: NewAuthService(userRepo),
		Checkout: NewCheckoutService(
			paymentRepo, walletRepo, subscriptionRepo, userRepo,
			gateway, checkoutLimiter, cfg,
		),
		Settlement: NewSettlementService(
			paymentRepo, walletRepo, subscriptionRepo, notificationRepo,
			userRepo, gateway, email,
		),
		Notification: NewNotificationService(notificationRepo),

		CheckoutLimiter: checkoutLimiter,
		VerifyLimiter:   verifyLimiter,
		WebhookLimiter:  webhookLimiter,
	}
}
