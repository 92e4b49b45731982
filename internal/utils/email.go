package utils

import (
	"fmt"

	"chikondi_backend/internal/config"
	"chikondi_backend/internal/logger"

	"gopkg.in/gomail.v2"
)

// SMTPEmailSender шлет транзакционные письма через SMTP
type SMTPEmailSender struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

// NewSMTPEmailSender возвращает nil если SMTP не настроен,
// вызывающий код трактует nil как выключенную почту
func NewSMTPEmailSender(cfg *config.Config) *SMTPEmailSender {
	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP is not configured, receipt emails disabled")
		return nil
	}
	return &SMTPEmailSender{
		dialer: gomail.NewDialer(
			cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPUser, cfg.Email.SMTPPassword,
		),
		fromEmail: cfg.Email.FromEmail,
		fromName:  cfg.Email.FromName,
	}
}

func (s *SMTPEmailSender) SendPaymentReceipt(email, displayName, txRef, tier string, amount int64, currency string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Payment receipt "+txRef)

	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"We received your payment.\n\n"+
			"Reference: %s\n"+
			"Item: %s\n"+
			"Amount: %d %s\n\n"+
			"Thank you for supporting Chikondi.\n",
		displayName, txRef, tier, amount, currency,
	)
	m.SetBody("text/plain", body)

	return s.dialer.DialAndSend(m)
}
