// Package ratelimit provides per-key request budgets for public endpoints.
// This is part of the platform layer and contains no business logic.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key fits in its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Policy is a request budget: Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}
