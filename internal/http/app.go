// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"medsupp_backend/platform/config"
	"medsupp_backend/platform/logger"
	"medsupp_backend/platform/ratelimit"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and JWT settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// QuoteLimiter budgets quote requests per client IP.
	QuoteLimiter ratelimit.Limiter
	// LeadLimiter budgets lead and call-request submissions per client IP.
	LeadLimiter ratelimit.Limiter
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
