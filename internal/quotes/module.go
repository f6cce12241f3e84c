// Package quotes provides the Medicare Supplement quoting module.
package quotes

import (
	"medsupp_backend/internal/carriers"
	apphttp "medsupp_backend/internal/http"
	"medsupp_backend/internal/quotes/handler"
	"medsupp_backend/internal/quotes/service"
	"medsupp_backend/platform/logger"
	"medsupp_backend/platform/validator"
)

// Module represents the quotes domain module
type Module struct {
	handler      *handler.Handler
	adminHandler *handler.AdminHandler
	service      *service.Service
}

// NewModule creates a new quotes module with all dependencies wired
func NewModule(fetcher service.QuoteFetcher, catalog *carriers.Catalog, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(fetcher, catalog, log)
	return &Module{
		handler:      handler.New(svc, val),
		adminHandler: handler.NewAdminHandler(svc),
		service:      svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1, ctx.QuoteRateLimit)
	m.adminHandler.RegisterRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
