package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medsupp_backend/internal/adapters/storage"
	"medsupp_backend/internal/carriers"
	"medsupp_backend/internal/csg"
	"medsupp_backend/internal/email"
	"medsupp_backend/internal/events"
	apphttp "medsupp_backend/internal/http"
	"medsupp_backend/internal/http/router"
	"medsupp_backend/internal/leads"
	leadsrepo "medsupp_backend/internal/leads/repository"
	"medsupp_backend/internal/notification"
	"medsupp_backend/internal/quotes"
	quotesrepo "medsupp_backend/internal/quotes/repository"
	"medsupp_backend/internal/scheduler"
	"medsupp_backend/migrations"
	"medsupp_backend/platform/config"
	"medsupp_backend/platform/db"
	"medsupp_backend/platform/logger"
	"medsupp_backend/platform/ratelimit"
	"medsupp_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	catalog, err := carriers.Load(cfg.GetCarriersFile())
	if err != nil {
		log.Error("failed to load carrier catalog", "error", err)
		panic("failed to load carrier catalog: " + err.Error())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	// Shared validator instance for dependency injection
	val := validator.New()

	var redisClient *redis.Client
	if cfg.IsRedisEnabled() {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			log.Error("invalid REDIS_URL", "error", err)
			panic("invalid REDIS_URL: " + err.Error())
		}
		redisClient = redis.NewClient(opt)
		defer func() { _ = redisClient.Close() }()
	}

	// ========================================================================
	// Quote Engine
	// ========================================================================

	httpClient := &http.Client{Timeout: cfg.GetCSGHTTPTimeout()}
	tokenManager := csg.NewTokenManager(csg.TokenManagerConfig{
		BaseURL:       cfg.GetCSGBaseURL(),
		APIKey:        cfg.GetCSGAPIKey(),
		PortalName:    cfg.GetCSGPortalName(),
		RefreshBuffer: cfg.GetCSGTokenRefreshBuffer(),
		DefaultTTL:    cfg.GetCSGTokenDefaultTTL(),
		HTTPClient:    httpClient,
	}, csg.NewPgTokenStore(pool), log)
	csgClient := csg.NewClient(csg.ClientConfig{
		BaseURL:              cfg.GetCSGBaseURL(),
		HTTPClient:           httpClient,
		MaxRequestsPerSecond: float64(cfg.GetCSGMaxRPS()),
	}, tokenManager, log)

	quotesModule := quotes.NewModule(csgClient, catalog, val, log)
	quotesModule.Service().SetTokenAdmin(tokenManager)

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		bucket := cfg.GetMinioBucketQuoteSnapshots()
		ensureBucket(ctx, log, storageSvc, "quote-snapshots", bucket)
		quotesModule.Service().SetSnapshotArchive(quotesrepo.NewSnapshotStore(storageSvc, bucket))
		log.Info("storage service initialized", "quoteSnapshotsBucket", bucket)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; quote snapshots disabled")
	}

	// ========================================================================
	// Leads and Notification
	// ========================================================================

	leadRepo := leadsrepo.New(pool)
	leadsModule := leads.NewModule(leadRepo, leadRepo, eventBus, val, log)

	var sender email.Sender = email.NoopSender{}
	salesEmail := ""
	if cfg.IsSMTPEnabled() {
		sender = email.NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetSMTPFrom(), "Medicare Supplement Quotes")
		salesEmail = cfg.GetSalesNotifyEmail()
	}

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(sender, salesEmail, log)
	notificationModule.RegisterHandlers(eventBus)

	if cfg.IsCallRequestWebhookEnabled() {
		webhook := notification.NewWebhookClient(cfg.GetCallRequestWebhookURL())
		notificationModule.SetWebhook(webhook)

		if closeScheduler := initScheduler(ctx, cfg, webhook, notificationModule, log); closeScheduler != nil {
			defer closeScheduler()
		}
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	quoteLimiter, leadLimiter := initLimiters(ctx, cfg, redisClient)

	app := &apphttp.App{
		Config:       cfg,
		Logger:       log,
		Health:       pool,
		QuoteLimiter: quoteLimiter,
		LeadLimiter:  leadLimiter,
		Modules: []apphttp.Module{
			quotesModule,
			leadsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initScheduler moves webhook delivery onto the asynq queue when Redis is
// configured. Without Redis the notification module posts inline.
func initScheduler(ctx context.Context, cfg config.SchedulerConfig, webhook scheduler.CallRequestDeliverer, notificationModule *notification.Module, log *logger.Logger) func() {
	if !cfg.IsRedisEnabled() {
		log.Warn("REDIS_URL not configured; call request webhooks are delivered inline")
		return nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil
	}

	notificationModule.SetEnqueuer(client)

	if !cfg.IsWorkerEmbedded() {
		log.Info("call request webhooks queued for the standalone scheduler", "queue", cfg.GetAsynqQueueName())
		return func() { _ = client.Close() }
	}

	worker, err := scheduler.NewWorker(cfg, webhook, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		_ = client.Close()
		return nil
	}
	go worker.Run(ctx)
	log.Info("scheduler started", "queue", cfg.GetAsynqQueueName())

	return func() {
		_ = client.Close()
	}
}

// initLimiters shares budgets across instances through Redis when it is
// available and falls back to per-process limiters otherwise.
func initLimiters(ctx context.Context, cfg config.RateLimitConfig, redisClient *redis.Client) (ratelimit.Limiter, ratelimit.Limiter) {
	quotePolicy := ratelimit.Policy{Limit: cfg.GetQuotesRateLimit(), Window: cfg.GetQuotesRateWindow()}
	leadPolicy := ratelimit.Policy{Limit: cfg.GetLeadsRateLimit(), Window: cfg.GetLeadsRateWindow()}

	if redisClient != nil {
		return ratelimit.NewRedisLimiter(redisClient, "ratelimit:quotes", quotePolicy),
			ratelimit.NewRedisLimiter(redisClient, "ratelimit:leads", leadPolicy)
	}

	quoteLimiter := ratelimit.NewMemoryLimiter(quotePolicy)
	leadLimiter := ratelimit.NewMemoryLimiter(leadPolicy)
	go quoteLimiter.Run(ctx)
	go leadLimiter.Run(ctx)
	return quoteLimiter, leadLimiter
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
