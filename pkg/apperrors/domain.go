package apperrors

import (
	"net/http"
)

/*
Предопределенные ошибки платежного домена.
Фабрики используются там, где нужно обернуть ошибку нижнего слоя
(репозитория или шлюза), переменные - для частых статичных ошибок.
*/

// --- Payments ---

// ErrPaymentNotFound - платеж с таким tx_ref не найден (404)
var ErrPaymentNotFound = New(
	CodePaymentNotFound,
	"payment",
	"Payment not found",
	http.StatusNotFound,
)

// ErrInvalidAmount - сумма не положительная, вне допустимых границ
// или не совпадает с прайсом тарифа (400)
var ErrInvalidAmount = New(
	CodeInvalidAmount,
	"payment",
	"Invalid payment amount",
	http.StatusBadRequest,
)

// ErrInvalidCurrency - валюта не поддерживается (400)
var ErrInvalidCurrency = New(
	CodeInvalidCurrency,
	"payment",
	"Unsupported currency",
	http.StatusBadRequest,
)

// ErrInvalidTier - неизвестный тариф (400)
var ErrInvalidTier = New(
	CodeInvalidTier,
	"payment",
	"Unknown subscription tier",
	http.StatusBadRequest,
)

// ErrRateLimited - превышен лимит попыток (429)
var ErrRateLimited = New(
	CodeRateLimited,
	"payment",
	"Too many attempts, try again later",
	http.StatusTooManyRequests,
)

// ErrGateway - фабрика для ошибок платежного шлюза (500).
// Текст наружу всегда общий: тело ответа провайдера клиенту не отдаем.
func ErrGateway(err error) *AppError {
	return Wrap(err, CodeGatewayError, "gateway", "Payment provider is unavailable", http.StatusInternalServerError)
}

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// --- Auth ---

// ErrInsufficientPermissions - не-админ пытается выполнить админ-действие (403)
var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)

// ErrNotPaymentOwner - попытка верифицировать чужой платеж (403)
var ErrNotPaymentOwner = New(
	CodeForbidden,
	"payment",
	"Payment belongs to another user",
	http.StatusForbidden,
)
