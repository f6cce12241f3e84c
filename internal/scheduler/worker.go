package scheduler

import (
	"context"
	"errors"
	"fmt"

	"medsupp_backend/platform/config"
	"medsupp_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// CallRequestDeliverer posts a call request to its destination.
type CallRequestDeliverer interface {
	DeliverCallRequest(ctx context.Context, payload CallRequestPayload) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	deliverer CallRequestDeliverer
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, deliverer CallRequestDeliverer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		deliverer: deliverer,
		log:       log,
	}

	mux.HandleFunc(TaskCallRequestWebhook, w.handleCallRequestWebhook)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return
	}

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("scheduler worker stopped")
}

func (w *Worker) handleCallRequestWebhook(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallRequestPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if err := w.deliverer.DeliverCallRequest(ctx, payload); err != nil {
		retry, _ := asynq.GetRetryCount(ctx)
		w.log.Warn("call request webhook failed", "retry", retry, "error", err)
		if errors.Is(err, ErrPermanent) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
