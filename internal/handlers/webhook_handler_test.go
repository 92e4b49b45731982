package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chikondi_backend/internal/models"
	"chikondi_backend/internal/ratelimit"
	"chikondi_backend/internal/services"
	"chikondi_backend/internal/testutils"
	"chikondi_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeSettlement struct {
	calls   []string
	sources []services.TrustSource
	result  *services.SettlementResult
	err     error
}

func (f *fakeSettlement) Settle(ctx context.Context, txRef string, source services.TrustSource) (*services.SettlementResult, error) {
	f.calls = append(f.calls, txRef)
	f.sources = append(f.sources, source)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &services.SettlementResult{TxRef: txRef, Status: models.PaymentStatusCompleted}, nil
}

const testWebhookSecret = "whsec-test"

func setupWebhookRouter(settlement *fakeSettlement, secret string) *gin.Engine {
	router := testutils.SetupTestRouter()
	router.HandleMethodNotAllowed = true

	h := NewWebhookHandler(
		NewBaseHandler(),
		settlement,
		ratelimit.NewSlidingWindow(1, 5*time.Second),
		secret,
	)
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/paychangu", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookValidSignatureTriggersSettlement(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"tx_ref":"tx-123","status":"success"}`)
	w := postWebhook(router, body, sign(body, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tx-123"}, settlement.calls)
	assert.Equal(t, services.SourceWebhook, settlement.sources[0])
}

func TestWebhookAnswersPlainTextOK(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"tx_ref":"tx-123","status":"success"}`)
	w := postWebhook(router, body, sign(body, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"tx_ref":"tx-123"}`)
	w := postWebhook(router, body, sign(body, "wrong-secret"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, settlement.calls, "settlement must not run on a forged webhook")
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	w := postWebhook(router, []byte(`{"tx_ref":"tx-123"}`), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, settlement.calls)
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	original := []byte(`{"tx_ref":"tx-123","amount":100}`)
	tampered := []byte(`{"tx_ref":"tx-123","amount":999999}`)
	w := postWebhook(router, tampered, sign(original, testWebhookSecret))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, settlement.calls)
}

func TestWebhookEmptySecretAcceptsUnsigned(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, "")

	w := postWebhook(router, []byte(`{"tx_ref":"tx-dev"}`), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tx-dev"}, settlement.calls)
}

func TestWebhookTxRefFromNestedData(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"event":"checkout.payment","data":{"tx_ref":"tx-nested"}}`)
	w := postWebhook(router, body, sign(body, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tx-nested"}, settlement.calls)
}

func TestWebhookWithoutTxRefIgnored(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"event":"ping"}`)
	w := postWebhook(router, body, sign(body, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, settlement.calls)
}

func TestWebhookUnknownTxRefStillAcknowledged(t *testing.T) {
	settlement := &fakeSettlement{err: apperrors.ErrPaymentNotFound}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"tx_ref":"tx-ghost"}`)
	w := postWebhook(router, body, sign(body, testWebhookSecret))

	// провайдеру всегда 200, иначе он будет бесконечно ретраить
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookCooldownSwallowsRetryStorm(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	body := []byte(`{"tx_ref":"tx-retry"}`)
	for i := 0; i < 5; i++ {
		w := postWebhook(router, body, sign(body, testWebhookSecret))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Len(t, settlement.calls, 1, "cooldown window must collapse duplicate webhooks")
}

func TestWebhookRejectsNonPost(t *testing.T) {
	settlement := &fakeSettlement{}
	router := setupWebhookRouter(settlement, testWebhookSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/webhook/paychangu", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, settlement.calls)
}
