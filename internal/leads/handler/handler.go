// Package handler exposes the leads HTTP endpoints.
package handler

import (
	"errors"
	"net/http"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/service"
	"outreach_backend/internal/leads/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/stats", h.Stats)
	rg.GET("/:id", h.GetByID)
	rg.POST("/import", h.Import)
	rg.POST("/:id/reset", h.Reset)
}

func (h *Handler) List(c *gin.Context) {
	var query transport.ListLeadsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
		return
	}

	filter := repository.ListFilter{Limit: query.Limit, Offset: query.Offset}
	if query.State != "" {
		state, err := domain.ParseState(query.State)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
			return
		}
		filter.State = &state
	}

	leads, err := h.svc.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, service.ErrLeadNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found")
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Import(c *gin.Context) {
	var req transport.ImportLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
		return
	}

	result, err := h.svc.ImportFromSource(c.Request.Context(), service.ImportParams{
		Titles:    req.Titles,
		Locations: req.Locations,
		MaxLeads:  req.MaxLeads,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *Handler) Reset(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	err = h.svc.ResetOutreach(c.Request.Context(), id)
	if errors.Is(err, service.ErrLeadNotFound) {
		httpkit.Error(c, http.StatusNotFound, "lead not found")
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.svc.Stats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.StatsResponse{States: make(map[string]int, len(counts))}
	for state, count := range counts {
		resp.States[string(state)] = count
		resp.Total += count
	}
	httpkit.OK(c, resp)
}
