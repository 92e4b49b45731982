package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"chikondi_backend/internal/logger"
	"chikondi_backend/internal/ratelimit"
	"chikondi_backend/internal/services"
	"chikondi_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "Signature"

// WebhookHandler - прием колбеков PayChangu. Тело вебхука никогда
// не считается правдой: из него берется только tx_ref, статус
// перепроверяется у провайдера внутри settlement.
type WebhookHandler struct {
	*BaseHandler
	settlement    services.SettlementService
	cooldown      ratelimit.Limiter
	webhookSecret string
}

func NewWebhookHandler(
	base *BaseHandler,
	settlement services.SettlementService,
	cooldown ratelimit.Limiter,
	webhookSecret string,
) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:   base,
		settlement:    settlement,
		cooldown:      cooldown,
		webhookSecret: webhookSecret,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/webhook/paychangu", h.HandlePayChangu)
}

// webhookBody - интересующие нас поля колбека. PayChangu кладет
// tx_ref то на верхний уровень, то внутрь data, в зависимости от
// типа события.
type webhookBody struct {
	TxRef     string `json:"tx_ref"`
	Reference string `json:"reference"`
	Data      struct {
		TxRef string `json:"tx_ref"`
	} `json:"data"`
}

func (b *webhookBody) txRef() string {
	if b.TxRef != "" {
		return b.TxRef
	}
	if b.Reference != "" {
		return b.Reference
	}
	return b.Data.TxRef
}

func (h *WebhookHandler) HandlePayChangu(c *gin.Context) {
	ctx := c.Request.Context()
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		logger.CtxWarn(ctx, "webhook body read failed", "error", err)
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	if !h.verifySignature(raw, c.GetHeader(signatureHeader)) {
		logger.CtxWarn(ctx, "webhook signature verification failed",
			"client_ip", c.ClientIP())
		c.String(http.StatusUnauthorized, "invalid signature")
		return
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		// подпись сошлась, но тело не парсится: отвечаем 200,
		// ретраи провайдера тут не помогут
		logger.CtxWarn(ctx, "webhook body is not valid json", "error", err)
		c.String(http.StatusOK, "OK")
		return
	}

	txRef := body.txRef()
	if txRef == "" {
		logger.CtxInfo(ctx, "webhook without tx_ref, ignoring")
		c.String(http.StatusOK, "OK")
		return
	}

	ctx = logger.WithTxRef(ctx, txRef)

	// шквал ретраев по одному tx_ref гасится окном, сам платеж
	// доберет реконсайлер или клиентский verify
	if !h.cooldown.Allow("webhook:" + txRef) {
		logger.CtxInfo(ctx, "webhook cooldown active, skipping")
		c.String(http.StatusOK, "OK")
		return
	}

	if _, err := h.settlement.Settle(ctx, txRef, services.SourceWebhook); err != nil {
		// провайдеру всегда 200: иначе он будет ретраить ошибки,
		// которые ретраями не лечатся (неизвестный tx_ref и т.п.)
		if apperrors.Is(err, apperrors.ErrPaymentNotFound) {
			logger.CtxInfo(ctx, "webhook for unknown tx_ref, ignoring")
		} else {
			logger.CtxWithError(ctx, "webhook settlement failed", err)
		}
	}

	c.String(http.StatusOK, "OK")
}

// verifySignature - HMAC-SHA256 от сырого тела ключом вебхука,
// сравнение за постоянное время. Пустой секрет в конфиге отключает
// проверку (локальная разработка).
func (h *WebhookHandler) verifySignature(raw []byte, signature string) bool {
	if h.webhookSecret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
