package csg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"medsupp_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

const authFlight = "auth"

// Token is a CSG session token and when it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenStore persists the shared session token so every API instance
// reuses one CSG session.
type TokenStore interface {
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, token Token) error
	Clear(ctx context.Context) error
}

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	BaseURL       string
	APIKey        string
	PortalName    string
	RefreshBuffer time.Duration
	DefaultTTL    time.Duration
	HTTPClient    *http.Client
}

// TokenManager hands out a valid session token, authenticating against
// auth.json only when the stored token is missing or about to expire.
// Concurrent authentications within one process are coalesced.
type TokenManager struct {
	cfg   TokenManagerConfig
	store TokenStore
	log   *logger.Logger
	now   func() time.Time
	group singleflight.Group
}

// NewTokenManager creates a token manager backed by store.
func NewTokenManager(cfg TokenManagerConfig, store TokenStore, log *logger.Logger) *TokenManager {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 8 * time.Hour
	}
	return &TokenManager{
		cfg:   cfg,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Token returns a session token valid for at least the refresh buffer.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	stored, err := m.store.Load(ctx)
	switch {
	case err == nil:
		if stored.Value != "" && stored.ExpiresAt.After(m.now().Add(m.cfg.RefreshBuffer)) {
			return stored.Value, nil
		}
		m.log.Info("csg token expired or expiring soon", "expires_at", stored.ExpiresAt)
	case errors.Is(err, ErrNoToken):
		m.log.Info("csg token missing, creating first token")
	default:
		m.log.Error("csg token load failed, authenticating anyway", "error", err)
	}

	return m.refresh(ctx, "")
}

// ForceRefresh invalidates the stored token and authenticates again.
func (m *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("csg token clear failed", "error", err)
	}
	return m.refresh(ctx, "")
}

// RefreshIfStale replaces a token the API rejected. If the store already
// holds a different unexpired token, another request refreshed first and
// that token is returned without authenticating.
func (m *TokenManager) RefreshIfStale(ctx context.Context, rejected string) (string, error) {
	if current, ok := m.replacementFor(ctx, rejected); ok {
		return current, nil
	}
	return m.refresh(ctx, rejected)
}

func (m *TokenManager) replacementFor(ctx context.Context, rejected string) (string, bool) {
	stored, err := m.store.Load(ctx)
	if err != nil || stored.Value == "" || stored.Value == rejected || !stored.ExpiresAt.After(m.now()) {
		return "", false
	}
	return stored.Value, true
}

// Clear invalidates the stored token without authenticating.
func (m *TokenManager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear csg token: %w", err)
	}
	m.log.TokenEvent("csg", "cleared", m.now())
	return nil
}

// refresh authenticates once per in-flight group. A non-empty rejected token
// is compared against the store again inside the flight, so a caller that
// arrives just after another refresh finished reuses its token.
func (m *TokenManager) refresh(ctx context.Context, rejected string) (string, error) {
	// The shared call must not die with whichever request happened to start it.
	shared := context.WithoutCancel(ctx)

	v, err, _ := m.group.Do(authFlight, func() (interface{}, error) {
		if rejected != "" {
			if current, ok := m.replacementFor(shared, rejected); ok {
				return current, nil
			}
		}
		token, err := m.authenticate(shared)
		if err != nil {
			return "", err
		}
		if err := m.store.Save(shared, token); err != nil {
			m.log.Error("csg token save failed", "error", err)
		}
		m.log.TokenEvent("csg", "issued", token.ExpiresAt)
		return token.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type authRequest struct {
	APIKey     string `json:"api_key"`
	PortalName string `json:"portal_name"`
}

type authResponse struct {
	Token       string `json:"token"`
	Key         string `json:"key"`
	ExpiresDate string `json:"expires_date"`
}

func (m *TokenManager) authenticate(ctx context.Context) (Token, error) {
	body, err := json.Marshal(authRequest{APIKey: m.cfg.APIKey, PortalName: m.cfg.PortalName})
	if err != nil {
		return Token{}, fmt.Errorf("encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/auth.json", bytes.NewReader(body))
	if err != nil {
		return Token{}, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		m.log.UpstreamCall("csg", "auth", 0, float64(time.Since(start).Milliseconds()))
		return Token{}, fmt.Errorf("csg auth: %w", err)
	}
	defer resp.Body.Close()
	m.log.UpstreamCall("csg", "auth", resp.StatusCode, float64(time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isMaxSessions(string(text)) {
			return Token{}, ErrMaxSessions
		}
		return Token{}, &StatusError{Op: "auth", StatusCode: resp.StatusCode, Body: truncate(string(text), 500)}
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Token{}, fmt.Errorf("decode auth response: %w", err)
	}

	value := parsed.Token
	if value == "" {
		value = parsed.Key
	}
	if value == "" {
		return Token{}, ErrMissingToken
	}

	return Token{Value: value, ExpiresAt: m.parseExpiry(parsed.ExpiresDate)}, nil
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (m *TokenManager) parseExpiry(value string) time.Time {
	if value != "" {
		for _, layout := range expiryLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t
			}
		}
		m.log.Warn("csg token expiry unparseable, using default ttl", "expires_date", value)
	}
	return m.now().Add(m.cfg.DefaultTTL)
}
