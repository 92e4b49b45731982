package paychangu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chikondi_backend/internal/logger"
	"chikondi_backend/pkg/apperrors"
)

// Client - шлюз к PayChangu. Две операции: создать hosted checkout
// и спросить авторитетный статус транзакции. Ретраев здесь нет,
// политику повторов выбирает вызывающая сторона.
type Client interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Verify(ctx context.Context, txRef string) (*VerifyResult, error)
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type CheckoutRequest struct {
	Amount      int64
	Currency    string
	TxRef       string
	Email       string
	FirstName   string
	LastName    string
	CallbackURL string
	ReturnURL   string
	Meta        map[string]any
}

type CheckoutSession struct {
	CheckoutURL string
}

// VerifyResult - подтвержденное провайдером состояние транзакции.
// Amount/Currency сверяются с нашей записью платежа.
type VerifyResult struct {
	ProviderStatus string
	Amount         int64
	Currency       string
}

type HTTPClient struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type checkoutPayload struct {
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	TxRef       string         `json:"tx_ref"`
	Email       string         `json:"email,omitempty"`
	FirstName   string         `json:"first_name,omitempty"`
	LastName    string         `json:"last_name,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	ReturnURL   string         `json:"return_url,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

type checkoutResponse struct {
	Status string `json:"status"`
	Data   struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type verifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		Status   string      `json:"status"`
		Amount   json.Number `json:"amount"`
		Currency string      `json:"currency"`
	} `json:"data"`
}

// CreateCheckout создает hosted checkout сессию и возвращает ее URL
func (c *HTTPClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	body, err := json.Marshal(checkoutPayload{
		Amount:      req.Amount,
		Currency:    req.Currency,
		TxRef:       req.TxRef,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Meta:        req.Meta,
	})
	if err != nil {
		return nil, apperrors.ErrGateway(err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/payment", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var parsed checkoutResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.ErrGateway(fmt.Errorf("checkout response unmarshal: %w", err))
	}
	if parsed.Data.CheckoutURL == "" {
		return nil, apperrors.ErrGateway(fmt.Errorf("checkout response missing checkout_url"))
	}

	return &CheckoutSession{CheckoutURL: parsed.Data.CheckoutURL}, nil
}

// Verify запрашивает авторитетный статус транзакции по tx_ref
func (c *HTTPClient) Verify(ctx context.Context, txRef string) (*VerifyResult, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/verify-payment/"+txRef, nil)
	if err != nil {
		return nil, err
	}

	var parsed verifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.ErrGateway(fmt.Errorf("verify response unmarshal: %w", err))
	}

	amount, _ := parsed.Data.Amount.Float64()

	return &VerifyResult{
		ProviderStatus: parsed.Data.Status,
		Amount:         int64(amount),
		Currency:       parsed.Data.Currency,
	}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, apperrors.ErrGateway(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Таймаут тоже сюда: для вызывающего это ошибка шлюза
		return nil, apperrors.ErrGateway(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrGateway(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Тело ответа провайдера остается в логе и не уходит клиенту
		logger.CtxError(ctx, "paychangu request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, apperrors.ErrGateway(fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	}

	return respBody, nil
}
