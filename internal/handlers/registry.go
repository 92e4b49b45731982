package handlers

import (
	"chikondi_backend/internal/config"
	"chikondi_backend/internal/services"
)

// AppHandlers - все HTTP-хендлеры приложения
type AppHandlers struct {
	Auth         *AuthHandler
	Payment      *PaymentHandler
	Webhook      *WebhookHandler
	Notification *NotificationHandler
}

func NewAppHandlers(svc *services.ServiceContainer, cfg *config.Config) *AppHandlers {
	base := NewBaseHandler()

	return &AppHandlers{
		Auth:         NewAuthHandler(base, svc.Auth),
		Payment:      NewPaymentHandler(base, svc.Checkout, svc.Settlement, svc.VerifyLimiter),
		Webhook:      NewWebhookHandler(base, svc.Settlement, svc.WebhookLimiter, cfg.PayChangu.WebhookSecret),
		Notification: NewNotificationHandler(base, svc.Notification),
	}
}
