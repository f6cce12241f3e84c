// Package router builds the gin engine from the composed application.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "medsupp_backend/internal/http"
	"medsupp_backend/platform/httpkit"
	"medsupp_backend/platform/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// New wires middleware, health checks and every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				app.Logger.Error("health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	admin := v1.Group("/admin")
	admin.Use(httpkit.AuthRequired(app.Config), httpkit.RequireRole("admin"))

	rc := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Admin:          admin,
		Config:         app.Config,
		QuoteRateLimit: limitOrPass(app, app.QuoteLimiter),
		LeadRateLimit:  limitOrPass(app, app.LeadLimiter),
	}

	for _, m := range app.Modules {
		app.Logger.Info("registering module", "module", m.Name())
		m.RegisterRoutes(rc)
	}

	return engine
}

func limitOrPass(app *apphttp.App, limiter ratelimit.Limiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return httpkit.RateLimit(limiter, app.Logger)
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else if origins := cfg.GetCORSOrigins(); len(origins) > 0 {
		cc.AllowOrigins = origins
	} else {
		cc.AllowOriginFunc = func(string) bool { return false }
	}
	return cc
}
