package models

// Тарифы и прайс платежного контура.
// Суммы в целых единицах валюты: у квачи нет копеек.

const (
	TierBasic    = "basic" // бесплатный, не покупается
	TierPremium  = "premium"
	TierPlatinum = "platinum"

	// Псевдо-тарифы: платеж без подписки
	TierTopup    = "topup"
	TierDonation = "donation"
)

// TierInfo - опубликованная цена тарифа и срок действия
type TierInfo struct {
	Name            string
	Prices          map[string]int64 // валюта -> точная цена
	EntitlementDays int
}

// AmountBounds - границы для тарифов со свободной суммой
type AmountBounds struct {
	Min int64
	Max int64
}

var SupportedCurrencies = map[string]bool{
	"MWK": true,
	"USD": true,
}

var Tiers = map[string]TierInfo{
	TierPremium: {
		Name:            TierPremium,
		Prices:          map[string]int64{"MWK": 15000, "USD": 10},
		EntitlementDays: 30,
	},
	TierPlatinum: {
		Name:            TierPlatinum,
		Prices:          map[string]int64{"MWK": 30000, "USD": 20},
		EntitlementDays: 30,
	},
}

var TopupBounds = map[string]AmountBounds{
	"MWK": {Min: 500, Max: 500000},
	"USD": {Min: 1, Max: 500},
}

var DonationBounds = map[string]AmountBounds{
	"MWK": {Min: 1000, Max: 1000000},
	"USD": {Min: 1, Max: 1000},
}

// LookupTier возвращает фиксированный тариф по имени
func LookupTier(name string) (TierInfo, bool) {
	info, ok := Tiers[name]
	return info, ok
}

// IsPurchasableTier - можно ли вообще платить за этот тариф
func IsPurchasableTier(name string) bool {
	if name == TierTopup || name == TierDonation {
		return true
	}
	_, ok := Tiers[name]
	return ok
}
