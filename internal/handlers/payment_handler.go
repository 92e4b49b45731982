package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"chikondi_backend/internal/middleware"
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/ratelimit"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/internal/services"
	"chikondi_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	*BaseHandler
	checkout      services.CheckoutService
	settlement    services.SettlementService
	verifyLimiter ratelimit.Limiter
}

func NewPaymentHandler(
	base *BaseHandler,
	checkout services.CheckoutService,
	settlement services.SettlementService,
	verifyLimiter ratelimit.Limiter,
) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:   base,
		checkout:      checkout,
		settlement:    settlement,
		verifyLimiter: verifyLimiter,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	{
		payments.POST("/checkout", h.Checkout)
		payments.POST("/verify", h.Verify)
		payments.GET("/history", h.History)
	}

	member := r.Group("")
	member.Use(middleware.AuthMiddleware())
	{
		member.GET("/wallet", h.Wallet)
		member.GET("/subscriptions/my", h.MySubscription)
	}

	admin := r.Group("/admin/payments")
	admin.Use(middleware.AuthMiddleware(), middleware.RoleMiddleware(models.UserRoleAdmin))
	{
		admin.GET("", h.AdminList)
		admin.GET("/stats", h.AdminStats)
		admin.POST("/settle/:tx_ref", h.AdminSettle)
	}
}

// VerifyRequest - запрос клиентского поллинга. admin_override
// позволяет админу проверить чужой платеж.
type VerifyRequest struct {
	TxRef         string `json:"tx_ref" validate:"required"`
	AdminOverride bool   `json:"admin_override"`
}

// Checkout создает pending-платеж и возвращает URL страницы оплаты
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var input services.CheckoutInput
	if !h.BindAndValidateJSON(c, &input) {
		return
	}

	out, err := h.checkout.Checkout(c.Request.Context(), userID, input)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, out)
}

// Verify - клиентский поллинг после возврата со страницы оплаты.
// Дергает тот же settlement, что и вебхук, поэтому работает даже
// если вебхук потерялся.
func (h *PaymentHandler) Verify(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req VerifyRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	source := services.SourcePoll
	record, err := h.findPayment(c, req.TxRef)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	if record.UserID != userID {
		if !req.AdminOverride || !middleware.IsAdmin(c) {
			h.HandleServiceError(c, apperrors.ErrNotPaymentOwner)
			return
		}
		source = services.SourceAdmin
	}

	// завершенный платеж отвечает из БД без похода к провайдеру;
	// failed не терминален для verify - поздний успех его чинит
	if record.Status == models.PaymentStatusCompleted {
		writeVerifyResponse(c, &services.SettlementResult{
			TxRef:   record.TxRef,
			Status:  record.Status,
			Already: true,
		})
		return
	}

	if !h.verifyLimiter.Allow("verify:" + req.TxRef) {
		h.HandleServiceError(c, apperrors.ErrRateLimited)
		return
	}

	result, err := h.settlement.Settle(c.Request.Context(), req.TxRef, source)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	writeVerifyResponse(c, result)
}

func writeVerifyResponse(c *gin.Context, result *services.SettlementResult) {
	c.JSON(http.StatusOK, gin.H{
		"success":          result.Status == models.PaymentStatusCompleted,
		"status":           result.Status,
		"paychangu_status": result.ProviderStatus,
		"already":          result.Already,
	})
}

func (h *PaymentHandler) findPayment(c *gin.Context, txRef string) (*models.PaymentRecord, error) {
	db := h.GetDB(c)
	if db == nil {
		return nil, apperrors.InternalError(errors.New("database connection missing from request context"))
	}
	record, err := repositories.NewPaymentRepository(db).FindByTxRef(txRef)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return record, nil
}

func (h *PaymentHandler) History(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	page, pageSize := paginationParams(c)

	payments, total, err := h.checkout.History(userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  payments,
		"total": total,
		"page":  page,
	})
}

func (h *PaymentHandler) Wallet(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	page, pageSize := paginationParams(c)

	overview, err := h.checkout.Wallet(userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func (h *PaymentHandler) MySubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	sub, err := h.checkout.ActiveSubscription(userID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.HTTPCode == http.StatusNotFound {
			// отсутствие подписки - это basic, а не ошибка
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"tier": models.TierBasic, "is_active": false}})
			return
		}
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (h *PaymentHandler) AdminList(c *gin.Context) {
	var criteria repositories.PaymentCriteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		h.HandleServiceError(c, apperrors.NewBadRequestError("Invalid query parameters"))
		return
	}

	payments, total, err := h.checkout.AdminList(criteria)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments, "total": total})
}

func (h *PaymentHandler) AdminStats(c *gin.Context) {
	stats, err := h.checkout.AdminStats()
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// AdminSettle - ручной прогон settlement по зависшему платежу
func (h *PaymentHandler) AdminSettle(c *gin.Context) {
	txRef := c.Param("tx_ref")

	result, err := h.settlement.Settle(c.Request.Context(), txRef, services.SourceAdmin)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func paginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
