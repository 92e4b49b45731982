package routes

import (
	"net/http"

	"chikondi_backend/internal/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes собирает все маршруты под /api/v1
func RegisterRoutes(router *gin.Engine, h *handlers.AppHandlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	h.Auth.RegisterRoutes(api)
	h.Payment.RegisterRoutes(api)
	h.Webhook.RegisterRoutes(api)
	h.Notification.RegisterRoutes(api)
}
