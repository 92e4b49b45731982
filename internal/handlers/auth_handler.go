package handlers

import (
	"net/http"

	"chikondi_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	*BaseHandler
	auth services.AuthService
}

func NewAuthHandler(base *BaseHandler, auth services.AuthService) *AuthHandler {
	return &AuthHandler{BaseHandler: base, auth: auth}
}

func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/auth")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if !h.BindAndValidateJSON(c, &input) {
		return
	}

	out, err := h.auth.Register(input)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": out})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input services.LoginInput
	if !h.BindAndValidateJSON(c, &input) {
		return
	}

	out, err := h.auth.Login(input)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}
