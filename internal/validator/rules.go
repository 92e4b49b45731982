package validator

import (
	"regexp"

	"chikondi_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// Малавийские номера: +265 и 9 цифр, либо локальный формат 0XXXXXXXXX.
var phoneRe = regexp.MustCompile(`^(\+265\d{9}|0\d{9})$`)

func registerCustomRules(v *validator.Validate) error {
	if err := v.RegisterValidation("currency_code", validateCurrencyCode); err != nil {
		return err
	}
	if err := v.RegisterValidation("payment_tier", validatePaymentTier); err != nil {
		return err
	}
	if err := v.RegisterValidation("mw_phone", validatePhone); err != nil {
		return err
	}
	return nil
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return models.SupportedCurrencies[fl.Field().String()]
}

func validatePaymentTier(fl validator.FieldLevel) bool {
	return models.IsPurchasableTier(fl.Field().String())
}

func validatePhone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		// пустой телефон валиден - поле опционально
		return true
	}
	return phoneRe.MatchString(value)
}
