package handler

import (
	"net/http"

	"medsupp_backend/internal/leads/service"
	"medsupp_backend/internal/leads/transport"
	"medsupp_backend/platform/httpkit"
	"medsupp_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles public lead capture requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the public lead routes behind limit.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.POST("/leads", limit, h.CreateLead)
	rg.POST("/call-requests", limit, h.RequestCall)
}

// CreateLead handles POST /api/v1/leads
func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.CreateLead(c.Request.Context(), req, service.Client{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// RequestCall handles POST /api/v1/call-requests
func (h *Handler) RequestCall(c *gin.Context) {
	var req transport.CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.RequestCall(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
