// Package csg talks to the CSG Actuarial Medicare Supplement quoting API:
// session token management and quote retrieval.
package csg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"medsupp_backend/platform/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// TokenSource supplies session tokens to the client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	RefreshIfStale(ctx context.Context, rejected string) (string, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	// BreakerFailures is how many consecutive failed fetches open the circuit.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open before probing.
	BreakerCooldown time.Duration
	// MaxRequestsPerSecond paces outbound calls; zero disables pacing.
	MaxRequestsPerSecond float64
}

// Client fetches Medicare Supplement quotes.
type Client struct {
	cfg     ClientConfig
	tokens  TokenSource
	log     *logger.Logger
	breaker *gobreaker.CircuitBreaker
	pacer   *rate.Limiter
}

// NewClient creates a quote client.
func NewClient(cfg ClientConfig, tokens TokenSource, log *logger.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 25 * time.Second}
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	c := &Client{cfg: cfg, tokens: tokens, log: log}
	if cfg.MaxRequestsPerSecond > 0 {
		c.pacer = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), max(1, int(cfg.MaxRequestsPerSecond)))
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "csg-quotes",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsClientError(err) || errors.Is(err, context.Canceled) || errors.Is(err, ErrPaced)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("csg: quote service temporarily unavailable")

// ErrPaced is returned when the caller's deadline ends before the outbound
// pacer admits the request.
var ErrPaced = errors.New("csg: outbound request budget exhausted")

// Quotes fetches quotes for p. A 401 or 403 triggers one token refresh and
// retry.
func (c *Client) Quotes(ctx context.Context, p QuoteParams) (*QuoteResult, error) {
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchQuotes(ctx, p)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	if err != nil {
		return nil, err
	}
	return v.(*QuoteResult), nil
}

func quoteQuery(p QuoteParams) url.Values {
	q := url.Values{}
	q.Set("zip5", p.Zip5)
	q.Set("age", strconv.Itoa(p.Age))
	q.Set("gender", p.Gender)
	q.Set("tobacco", strconv.FormatBool(p.Tobacco))
	q.Set("apply_discounts", "0")
	if p.Plan != "" {
		q.Set("plan", p.Plan)
	}
	if p.EffectiveDate != "" {
		q.Set("effective_date", p.EffectiveDate)
	}
	return q
}

func (c *Client) fetchQuotes(ctx context.Context, p QuoteParams) (*QuoteResult, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("csg token: %w", err)
	}

	reqURL := c.cfg.BaseURL + "/med_supp/quotes.json?" + quoteQuery(p).Encode()

	resp, err := c.get(ctx, reqURL, token)
	if err != nil {
		return nil, err
	}

	if isAuthFailure(resp.StatusCode) {
		text := drain(resp)
		if isMaxSessions(text) {
			return nil, ErrMaxSessions
		}

		c.log.Info("csg session rejected, refreshing token", "status", resp.StatusCode)
		token, err = c.tokens.RefreshIfStale(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("csg refresh expired session: %w", err)
		}

		resp, err = c.get(ctx, reqURL, token)
		if err != nil {
			return nil, err
		}
		if isAuthFailure(resp.StatusCode) {
			c.log.Error("csg retry rejected", "status", resp.StatusCode, "body", truncate(drain(resp), 500))
			return nil, ErrSessionRejected
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("csg quote fetch failed", "status", resp.StatusCode, "body", truncate(string(text), 500))
		return nil, &StatusError{Op: "quotes", StatusCode: resp.StatusCode, Body: truncate(string(text), 500)}
	}

	loggingKey := resp.Header.Get("csg-log-key")
	if loggingKey == "" {
		loggingKey = resp.Header.Get("csg-log-uuid")
	}

	var quotes []RawQuote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("decode csg quotes: %w", err)
	}

	result := &QuoteResult{Quotes: quotes, LoggingKey: loggingKey}
	if len(quotes) > 0 {
		result.State = quotes[0].State
	}

	c.log.Debug("csg quotes fetched", "count", len(quotes), "state", result.State, "has_logging_key", loggingKey != "")
	return result, nil
}

func (c *Client) get(ctx context.Context, reqURL, token string) (*http.Response, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrPaced, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-token", token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		c.log.UpstreamCall("csg", "quotes", 0, latency)
		return nil, fmt.Errorf("csg quotes request: %w", err)
	}
	c.log.UpstreamCall("csg", "quotes", resp.StatusCode, latency)
	return resp, nil
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func drain(resp *http.Response) string {
	defer resp.Body.Close()
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(text)
}
