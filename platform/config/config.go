// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CSGConfig provides settings for the CSG Actuarial quoting API.
type CSGConfig interface {
	GetCSGAPIKey() string
	GetCSGBaseURL() string
	GetCSGPortalName() string
	GetCSGTokenRefreshBuffer() time.Duration
	GetCSGTokenDefaultTTL() time.Duration
	GetCSGHTTPTimeout() time.Duration
	GetCSGMaxRPS() int
}

// RateLimitConfig provides per-route request budgets.
type RateLimitConfig interface {
	GetQuotesRateLimit() int
	GetQuotesRateWindow() time.Duration
	GetLeadsRateLimit() int
	GetLeadsRateWindow() time.Duration
}

// SchedulerConfig provides settings for Redis and the background job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	IsRedisEnabled() bool
	IsWorkerEmbedded() bool
}

// WebhookConfig provides the outbound call-request webhook.
type WebhookConfig interface {
	GetCallRequestWebhookURL() string
	IsCallRequestWebhookEnabled() bool
}

// SMTPConfig provides settings for sales notification email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFrom() string
	GetSalesNotifyEmail() string
	IsSMTPEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketQuoteSnapshots() string
	IsMinIOEnabled() bool
}

// CarrierConfig provides the optional carrier catalog override.
type CarrierConfig interface {
	GetCarriersFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	CSGAPIKey                 string
	CSGBaseURL                string
	CSGPortalName             string
	CSGTokenRefreshBuffer     time.Duration
	CSGTokenDefaultTTL        time.Duration
	CSGHTTPTimeout            time.Duration
	CSGMaxRPS                 int
	QuotesRateLimit           int
	QuotesRateWindow          time.Duration
	LeadsRateLimit            int
	LeadsRateWindow           time.Duration
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	AsynqEmbeddedWorker       bool
	CallRequestWebhookURL     string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUsername              string
	SMTPPassword              string
	SMTPFrom                  string
	SalesNotifyEmail          string
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinioBucketQuoteSnapshots string
	CarriersFile              string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// CSGConfig implementation
func (c *Config) GetCSGAPIKey() string                     { return c.CSGAPIKey }
func (c *Config) GetCSGBaseURL() string                    { return c.CSGBaseURL }
func (c *Config) GetCSGPortalName() string                 { return c.CSGPortalName }
func (c *Config) GetCSGTokenRefreshBuffer() time.Duration  { return c.CSGTokenRefreshBuffer }
func (c *Config) GetCSGTokenDefaultTTL() time.Duration     { return c.CSGTokenDefaultTTL }
func (c *Config) GetCSGHTTPTimeout() time.Duration         { return c.CSGHTTPTimeout }
func (c *Config) GetCSGMaxRPS() int                        { return c.CSGMaxRPS }

// RateLimitConfig implementation
func (c *Config) GetQuotesRateLimit() int            { return c.QuotesRateLimit }
func (c *Config) GetQuotesRateWindow() time.Duration { return c.QuotesRateWindow }
func (c *Config) GetLeadsRateLimit() int             { return c.LeadsRateLimit }
func (c *Config) GetLeadsRateWindow() time.Duration  { return c.LeadsRateWindow }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) IsRedisEnabled() bool       { return c.RedisURL != "" }
func (c *Config) IsWorkerEmbedded() bool     { return c.AsynqEmbeddedWorker }

// WebhookConfig implementation
func (c *Config) GetCallRequestWebhookURL() string  { return c.CallRequestWebhookURL }
func (c *Config) IsCallRequestWebhookEnabled() bool { return c.CallRequestWebhookURL != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetSMTPFrom() string         { return c.SMTPFrom }
func (c *Config) GetSalesNotifyEmail() string { return c.SalesNotifyEmail }
func (c *Config) IsSMTPEnabled() bool {
	return c.SMTPHost != "" && c.SalesNotifyEmail != ""
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketQuoteSnapshots() string {
	return c.MinioBucketQuoteSnapshots
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// CarrierConfig implementation
func (c *Config) GetCarriersFile() string { return c.CarriersFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		CSGAPIKey:                 getEnv("CSG_API_KEY", ""),
		CSGBaseURL:                strings.TrimRight(getEnv("CSG_BASE_URL", "https://api.csgactuarial.com/v1"), "/"),
		CSGPortalName:             getEnv("CSG_PORTAL_NAME", "csg_individual"),
		CSGTokenRefreshBuffer:     mustDuration(getEnv("CSG_TOKEN_REFRESH_BUFFER", "10m")),
		CSGTokenDefaultTTL:        mustDuration(getEnv("CSG_TOKEN_DEFAULT_TTL", "8h")),
		CSGHTTPTimeout:            mustDuration(getEnv("CSG_HTTP_TIMEOUT", "25s")),
		CSGMaxRPS:                 mustInt(getEnv("CSG_MAX_RPS", "10")),
		QuotesRateLimit:           mustInt(getEnv("QUOTES_RATE_LIMIT", "10")),
		QuotesRateWindow:          mustDuration(getEnv("QUOTES_RATE_WINDOW", "5m")),
		LeadsRateLimit:            mustInt(getEnv("LEADS_RATE_LIMIT", "5")),
		LeadsRateWindow:           mustDuration(getEnv("LEADS_RATE_WINDOW", "1m")),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		AsynqEmbeddedWorker:       strings.EqualFold(getEnv("ASYNQ_EMBEDDED_WORKER", "true"), "true"),
		CallRequestWebhookURL:     getEnv("CALL_REQUEST_WEBHOOK_URL", ""),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:                  getEnv("SMTP_FROM", ""),
		SalesNotifyEmail:          getEnv("SALES_NOTIFY_EMAIL", ""),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketQuoteSnapshots: getEnv("MINIO_BUCKET_QUOTE_SNAPSHOTS", "quote-snapshots"),
		CarriersFile:              getEnv("CARRIERS_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CSGAPIKey == "" {
		return nil, fmt.Errorf("CSG_API_KEY is required")
	}
	if cfg.QuotesRateLimit <= 0 || cfg.QuotesRateWindow <= 0 {
		return nil, fmt.Errorf("QUOTES_RATE_LIMIT and QUOTES_RATE_WINDOW must be positive")
	}
	if cfg.LeadsRateLimit <= 0 || cfg.LeadsRateWindow <= 0 {
		return nil, fmt.Errorf("LEADS_RATE_LIMIT and LEADS_RATE_WINDOW must be positive")
	}
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
