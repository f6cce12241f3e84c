package handler

import (
	"net/http"
	"strconv"

	"medsupp_backend/internal/quotes/service"
	"medsupp_backend/internal/quotes/transport"
	"medsupp_backend/platform/httpkit"
	"medsupp_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles public quote HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new quotes handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the public quote routes. limit guards the
// CSG-backed endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.POST("/quotes", limit, h.GetQuotes)
	rg.GET("/medigap/start-date", h.StartDate)
}

// GetQuotes handles POST /api/v1/quotes
func (h *Handler) GetQuotes(c *gin.Context) {
	var req transport.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.GetQuotes(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// StartDate handles GET /api/v1/medigap/start-date?dob=YYYY-MM-DD
func (h *Handler) StartDate(c *gin.Context) {
	dob := c.Query("dob")
	if dob == "" {
		httpkit.Error(c, http.StatusBadRequest, "dob is required", nil)
		return
	}

	result, err := h.svc.StartDate(dob)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// AdminHandler exposes CSG session and snapshot administration.
type AdminHandler struct {
	svc *service.Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *service.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// RegisterRoutes registers admin routes on an authenticated, admin-only group.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/csg/token/refresh", h.RefreshToken)
	rg.DELETE("/csg/token", h.ClearToken)
	rg.GET("/quotes/snapshots/:year/:month/:id", h.SnapshotURL)
}

// RefreshToken handles POST /api/v1/admin/csg/token/refresh
func (h *AdminHandler) RefreshToken(c *gin.Context) {
	if httpkit.MustGetIdentity(c) == nil {
		return
	}
	if err := h.svc.RefreshToken(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TokenResponse{Status: "refreshed"})
}

// ClearToken handles DELETE /api/v1/admin/csg/token
func (h *AdminHandler) ClearToken(c *gin.Context) {
	if httpkit.MustGetIdentity(c) == nil {
		return
	}
	if err := h.svc.ClearToken(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TokenResponse{Status: "cleared"})
}

// SnapshotURL handles GET /api/v1/admin/quotes/snapshots/:year/:month/:id
func (h *AdminHandler) SnapshotURL(c *gin.Context) {
	if httpkit.MustGetIdentity(c) == nil {
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid year", nil)
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid month", nil)
		return
	}

	result, err := h.svc.SnapshotURL(c.Request.Context(), year, month, c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
