// Package leads provides lead capture, call-request intake and enrollment
// application drafts.
package leads

import (
	"medsupp_backend/internal/events"
	apphttp "medsupp_backend/internal/http"
	"medsupp_backend/internal/leads/handler"
	"medsupp_backend/internal/leads/repository"
	"medsupp_backend/internal/leads/service"
	"medsupp_backend/platform/logger"
	"medsupp_backend/platform/validator"
)

// Module represents the leads domain module
type Module struct {
	handler    *handler.Handler
	appHandler *handler.ApplicationHandler
	service    *service.Service
}

// NewModule creates a new leads module with all dependencies wired
func NewModule(repo repository.LeadWriter, apps repository.ApplicationStore, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repo, eventBus, log)
	return &Module{
		handler:    handler.New(svc, val),
		appHandler: handler.NewApplicationHandler(service.NewApplicationService(apps, log), val),
		service:    svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1, ctx.LeadRateLimit)
	m.appHandler.RegisterRoutes(ctx.V1, ctx.LeadRateLimit)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
