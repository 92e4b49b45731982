package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutForm struct {
	Tier     string `json:"tier" validate:"required,payment_tier"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required,currency_code"`
	Phone    string `json:"phone" validate:"omitempty,mw_phone"`
}

func TestValidateCheckoutForm(t *testing.T) {
	v := New()

	err := v.Validate(checkoutForm{Tier: "premium", Amount: 15000, Currency: "MWK"})
	assert.NoError(t, err)

	err = v.Validate(checkoutForm{Tier: "basic", Amount: 15000, Currency: "MWK"})
	require.Error(t, err, "free tier is not purchasable")

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Errors, "tier")
}

func TestValidateCurrencyCode(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(checkoutForm{Tier: "topup", Amount: 500, Currency: "USD"}))
	assert.Error(t, v.Validate(checkoutForm{Tier: "topup", Amount: 500, Currency: "EUR"}))
	assert.Error(t, v.Validate(checkoutForm{Tier: "topup", Amount: 500, Currency: "mwk"}))
}

func TestValidateMalawianPhone(t *testing.T) {
	v := New()

	valid := []string{"", "+265991234567", "0991234567"}
	for _, phone := range valid {
		assert.NoError(t, v.Validate(checkoutForm{
			Tier: "topup", Amount: 500, Currency: "MWK", Phone: phone,
		}), "phone %q", phone)
	}

	invalid := []string{"+26599123", "12345", "+1555123456", "099-123-4567"}
	for _, phone := range invalid {
		assert.Error(t, v.Validate(checkoutForm{
			Tier: "topup", Amount: 500, Currency: "MWK", Phone: phone,
		}), "phone %q", phone)
	}
}
