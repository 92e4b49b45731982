package paychangu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chikondi_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *HTTPClient {
	return NewClient(Config{
		BaseURL:   serverURL,
		SecretKey: "sk-test",
		Timeout:   2 * time.Second,
	})
}

func TestCreateCheckout(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotPayload)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"checkout_url":"https://checkout.paychangu.test/abc"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	session, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		Amount:   15000,
		Currency: "MWK",
		TxRef:    "tx-1",
		Email:    "thandi@example.mw",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paychangu.test/abc", session.CheckoutURL)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "tx-1", gotPayload["tx_ref"])
	assert.Equal(t, float64(15000), gotPayload["amount"])
}

func TestCreateCheckoutMissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateCheckout(context.Background(), CheckoutRequest{
		Amount: 1000, Currency: "MWK", TxRef: "tx-1",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrGateway(nil)))
}

func TestVerifyParsesProviderResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/verify-payment/tx-1", r.URL.Path)
		w.Write([]byte(`{"status":"success","data":{"status":"success","amount":15000,"currency":"MWK"}}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Verify(context.Background(), "tx-1")
	require.NoError(t, err)

	assert.Equal(t, "success", result.ProviderStatus)
	assert.Equal(t, int64(15000), result.Amount)
	assert.Equal(t, "MWK", result.Currency)
}

func TestVerifyDecimalAmount(t *testing.T) {
	// некоторые ответы провайдера приходят с дробной суммой
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"success","amount":15000.00,"currency":"MWK"}}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Verify(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), result.Amount)
}

func TestVerifyProviderErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","message":"invalid api key"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Verify(context.Background(), "tx-1")
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPCode)
	// сырой ответ провайдера не должен утекать клиенту
	assert.NotContains(t, appErr.Message, "invalid api key")
}

func TestVerifyTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, SecretKey: "sk", Timeout: 50 * time.Millisecond})
	_, err := client.Verify(context.Background(), "tx-1")
	require.Error(t, err)
}
