// Package handler exposes the auth HTTP endpoints.
package handler

import (
	"errors"
	"net/http"

	"outreach_backend/internal/auth/service"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed")
		return
	}

	token, err := h.svc.Login(req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpkit.Error(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, loginResponse{AccessToken: token})
}

// GetMe returns the authenticated subject. Useful as a token check.
func (h *Handler) GetMe(c *gin.Context) {
	subject, _ := c.Get(httpkit.ContextSubjectKey)
	httpkit.OK(c, gin.H{"email": subject})
}
