package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"medsupp_backend/internal/notification"
	"medsupp_backend/internal/scheduler"
	"medsupp_backend/platform/config"
	"medsupp_backend/platform/logger"
)

// The scheduler binary drains the call-request webhook queue when the API
// runs with ASYNQ_EMBEDDED_WORKER=false.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if !cfg.IsRedisEnabled() {
		log.Error("REDIS_URL is required to run the scheduler")
		panic("REDIS_URL is required to run the scheduler")
	}
	if !cfg.IsCallRequestWebhookEnabled() {
		log.Error("CALL_REQUEST_WEBHOOK_URL is required to run the scheduler")
		panic("CALL_REQUEST_WEBHOOK_URL is required to run the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webhook := notification.NewWebhookClient(cfg.GetCallRequestWebhookURL())

	worker, err := scheduler.NewWorker(cfg, webhook, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
