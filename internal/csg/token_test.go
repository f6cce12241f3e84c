package csg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"medsupp_backend/platform/logger"
)

type memoryStore struct {
	mu      sync.Mutex
	token   *Token
	loadErr error
	saves   int
	clears  int
}

func (s *memoryStore) Load(context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Token{}, s.loadErr
	}
	if s.token == nil {
		return Token{}, ErrNoToken
	}
	return *s.token, nil
}

func (s *memoryStore) Save(_ context.Context, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &t
	s.saves++
	return nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &Token{}
	s.clears++
	return nil
}

func newAuthServer(t *testing.T, calls *atomic.Int32, respond func(w http.ResponseWriter, n int32)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth.json" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body authRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode auth body: %v", err)
		}
		if body.APIKey != "secret" || body.PortalName != "csg_individual" {
			t.Errorf("unexpected auth body: %+v", body)
		}
		respond(w, calls.Add(1))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newManager(srv *httptest.Server, store TokenStore) *TokenManager {
	return NewTokenManager(TokenManagerConfig{
		BaseURL:       srv.URL,
		APIKey:        "secret",
		PortalName:    "csg_individual",
		RefreshBuffer: 10 * time.Minute,
		DefaultTTL:    8 * time.Hour,
		HTTPClient:    srv.Client(),
	}, store, logger.New("test"))
}

func TestTokenReusesStoredTokenOutsideBuffer(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{"token":"fresh"}`))
	})

	store := &memoryStore{token: &Token{Value: "stored", ExpiresAt: time.Now().Add(time.Hour)}}
	got, err := newManager(srv, store).Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "stored" {
		t.Fatalf("expected stored token, got %q", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no auth calls, got %d", calls.Load())
	}
}

func TestTokenRefreshesInsideBuffer(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{"key":"from-key","expires_date":"2030-01-01T00:00:00Z"}`))
	})

	store := &memoryStore{token: &Token{Value: "stale", ExpiresAt: time.Now().Add(5 * time.Minute)}}
	got, err := newManager(srv, store).Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-key" {
		t.Fatalf("expected token from key field, got %q", got)
	}
	want := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if !store.token.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, store.token.ExpiresAt)
	}
}

func TestTokenDefaultsExpiryWhenMissing(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	})

	store := &memoryStore{}
	m := newManager(srv, store)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.token.ExpiresAt.Equal(fixed.Add(8 * time.Hour)) {
		t.Fatalf("expected 8h default expiry, got %v", store.token.ExpiresAt)
	}
}

func TestTokenAuthenticatesWhenStoreFails(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	})

	store := &memoryStore{loadErr: errors.New("db down")}
	got, err := newManager(srv, store).Token(context.Background())
	if err != nil || got != "abc" {
		t.Fatalf("expected fresh token despite store failure, got %q, %v", got, err)
	}
}

func TestTokenCoalescesConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		<-release
		_, _ = w.Write([]byte(`{"token":"shared"}`))
	})

	m := newManager(srv, &memoryStore{})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.Token(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single auth call, got %d", calls.Load())
	}
	for i, r := range results {
		if r != "shared" {
			t.Fatalf("caller %d: expected shared token, got %q", i, r)
		}
	}
}

func TestTokenMaxSessions(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Max Session Reached"}`))
	})

	_, err := newManager(srv, &memoryStore{}).Token(context.Background())
	if !errors.Is(err, ErrMaxSessions) {
		t.Fatalf("expected ErrMaxSessions, got %v", err)
	}
}

func TestTokenMissingInResponse(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := newManager(srv, &memoryStore{}).Token(context.Background())
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestForceRefreshAndClear(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, n int32) {
		_, _ = w.Write([]byte(`{"token":"t` + string('0'+rune(n)) + `"}`))
	})

	store := &memoryStore{token: &Token{Value: "valid", ExpiresAt: time.Now().Add(time.Hour)}}
	m := newManager(srv, store)

	got, err := m.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "t1" || store.clears != 1 {
		t.Fatalf("expected new token t1 after one clear, got %q (clears=%d)", got, store.clears)
	}

	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.token.Value != "" {
		t.Fatal("expected token to be cleared")
	}
}

func TestRefreshIfStaleReusesNewerStoredToken(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{"token":"fresh"}`))
	})

	store := &memoryStore{token: &Token{Value: "newer", ExpiresAt: time.Now().Add(time.Hour)}}
	m := newManager(srv, store)

	got, err := m.RefreshIfStale(context.Background(), "rejected")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "newer" || calls.Load() != 0 || store.clears != 0 {
		t.Fatalf("expected stored token without auth, got %q (auth calls=%d, clears=%d)", got, calls.Load(), store.clears)
	}
}

func TestRefreshIfStaleReplacesRejectedToken(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(`{"token":"fresh"}`))
	})

	store := &memoryStore{token: &Token{Value: "rejected", ExpiresAt: time.Now().Add(time.Hour)}}
	m := newManager(srv, store)

	got, err := m.RefreshIfStale(context.Background(), "rejected")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fresh" || calls.Load() != 1 || store.clears != 0 || store.token.Value != "fresh" {
		t.Fatalf("expected one auth replacing the token, got %q (auth calls=%d, clears=%d)", got, calls.Load(), store.clears)
	}

	again, err := m.RefreshIfStale(context.Background(), "rejected")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != "fresh" || calls.Load() != 1 {
		t.Fatalf("expected a late caller to reuse the replacement, got %q (auth calls=%d)", again, calls.Load())
	}
}

func TestRefreshIfStaleCoalescesRejectedCallers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := newAuthServer(t, &calls, func(w http.ResponseWriter, _ int32) {
		<-release
		_, _ = w.Write([]byte(`{"token":"fresh"}`))
	})

	store := &memoryStore{token: &Token{Value: "rejected", ExpiresAt: time.Now().Add(time.Hour)}}
	m := newManager(srv, store)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.RefreshIfStale(context.Background(), "rejected")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 || store.clears != 0 {
		t.Fatalf("expected a single auth and no clears, got %d auths, %d clears", calls.Load(), store.clears)
	}
	for i, r := range results {
		if r != "fresh" {
			t.Fatalf("caller %d: expected fresh token, got %q", i, r)
		}
	}
}
