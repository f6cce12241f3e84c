package handler

import (
	"net/http"

	"medsupp_backend/internal/leads/service"
	"medsupp_backend/internal/leads/transport"
	"medsupp_backend/platform/httpkit"
	"medsupp_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApplicationHandler handles enrollment application drafts.
type ApplicationHandler struct {
	svc *service.ApplicationService
	val *validator.Validator
}

// NewApplicationHandler creates a new application handler.
func NewApplicationHandler(svc *service.ApplicationService, val *validator.Validator) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, val: val}
}

// RegisterRoutes registers the application routes behind limit.
func (h *ApplicationHandler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.POST("/applications", limit, h.Create)
	rg.GET("/applications/:id", limit, h.Load)
	rg.PUT("/applications/:id", limit, h.Save)
}

// Create handles POST /api/v1/applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req transport.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// Load handles GET /api/v1/applications/:id?leadId=
func (h *ApplicationHandler) Load(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid application id", nil)
		return
	}
	leadID, err := uuid.Parse(c.Query("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "leadId query parameter must be a UUID", nil)
		return
	}

	result, err := h.svc.Load(c.Request.Context(), id, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Save handles PUT /api/v1/applications/:id
func (h *ApplicationHandler) Save(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid application id", nil)
		return
	}

	var req transport.SaveApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.Save(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
