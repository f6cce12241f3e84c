package csg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"medsupp_backend/platform/logger"
)

type stubTokens struct {
	token      string
	refreshed  string
	refreshes  atomic.Int32
	rejected   string
	refreshErr error
}

func (s *stubTokens) Token(context.Context) (string, error) { return s.token, nil }

func (s *stubTokens) RefreshIfStale(_ context.Context, rejected string) (string, error) {
	s.refreshes.Add(1)
	s.rejected = rejected
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.token = s.refreshed
	return s.refreshed, nil
}

const sampleQuotes = `[
  {
    "key": "q1",
    "plan": "G",
    "state": "TX",
    "rate": {"month": 12345},
    "rate_increases": [{"rate_increase": 0.05, "date": "2023-01-01"}, {"increase": 4}],
    "company_base": {
      "name": "Humana Insurance Company",
      "naic": "73288",
      "ambest_rating": "A-",
      "med_supp_state_market_data": [{"premiums": 1000000, "claims": 700000}]
    },
    "view_type": ["with_hhd"]
  }
]`

func newClient(srv *httptest.Server, tokens TokenSource) *Client {
	return NewClient(ClientConfig{
		BaseURL:         srv.URL,
		HTTPClient:      srv.Client(),
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, tokens, logger.New("test"))
}

func TestQuotesSendsExpectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/med_supp/quotes.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("zip5") != "75001" || q.Get("age") != "65" || q.Get("gender") != "F" ||
			q.Get("tobacco") != "false" || q.Get("apply_discounts") != "0" || q.Get("plan") != "G" ||
			q.Get("effective_date") != "2026-03-01" {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("x-api-token") != "tok" {
			t.Errorf("expected x-api-token header, got %q", r.Header.Get("x-api-token"))
		}
		w.Header().Set("csg-log-uuid", "log-123")
		_, _ = w.Write([]byte(sampleQuotes))
	}))
	defer srv.Close()

	res, err := newClient(srv, &stubTokens{token: "tok"}).Quotes(context.Background(), QuoteParams{
		Zip5: "75001", Age: 65, Gender: "F", Plan: "G", EffectiveDate: "2026-03-01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LoggingKey != "log-123" || res.State != "TX" || len(res.Quotes) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	q := res.Quotes[0]
	if q.Rate.Month != 12345 || q.CompanyBase.NAIC != "73288" || !q.HasViewType("with_hhd") {
		t.Fatalf("unexpected decoded quote: %+v", q)
	}
	if len(q.RateIncreases) != 2 || q.RateIncreases[0].Increase != 0.05 || q.RateIncreases[1].Increase != 4 {
		t.Fatalf("unexpected rate increases: %+v", q.RateIncreases)
	}
	if md := q.CompanyBase.LatestStateMarketData(); md == nil || *md.Claims != 700000 {
		t.Fatalf("unexpected state market data: %+v", md)
	}
}

func TestQuotesRetriesOnceAfterAuthFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("x-api-token") != "new" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Session Expired"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "old", refreshed: "new"}
	res, err := newClient(srv, tokens).Quotes(context.Background(), QuoteParams{Zip5: "75001", Age: 70, Gender: "M"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.refreshes.Load() != 1 || calls.Load() != 2 {
		t.Fatalf("expected one refresh and two calls, got %d refreshes, %d calls", tokens.refreshes.Load(), calls.Load())
	}
	if tokens.rejected != "old" {
		t.Fatalf("expected the rejected token to be reported, got %q", tokens.rejected)
	}
	if len(res.Quotes) != 0 || res.State != "" {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestQuotesFailsWhenRetryIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "old", refreshed: "new"}
	_, err := newClient(srv, tokens).Quotes(context.Background(), QuoteParams{Zip5: "75001", Age: 70, Gender: "M"})
	if !errors.Is(err, ErrSessionRejected) {
		t.Fatalf("expected ErrSessionRejected, got %v", err)
	}
}

func TestQuotesMaxSessionsSkipsRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("You have reached the maximum number of sessions"))
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "old", refreshed: "new"}
	_, err := newClient(srv, tokens).Quotes(context.Background(), QuoteParams{Zip5: "75001", Age: 70, Gender: "M"})
	if !errors.Is(err, ErrMaxSessions) {
		t.Fatalf("expected ErrMaxSessions, got %v", err)
	}
	if tokens.refreshes.Load() != 0 {
		t.Fatal("expected no refresh when sessions are exhausted")
	}
}

func TestQuotesBreakerOpensOnUpstreamFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(srv, &stubTokens{token: "tok"})
	params := QuoteParams{Zip5: "75001", Age: 70, Gender: "M"}

	for i := 0; i < 2; i++ {
		_, err := c.Quotes(context.Background(), params)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
			t.Fatalf("call %d: expected 502 status error, got %v", i+1, err)
		}
	}

	if _, err := c.Quotes(context.Background(), params); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected open circuit to skip the upstream, got %d calls", calls.Load())
	}
}

func TestQuotesClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid zip5"}`))
	}))
	defer srv.Close()

	c := newClient(srv, &stubTokens{token: "tok"})
	for i := 0; i < 4; i++ {
		_, err := c.Quotes(context.Background(), QuoteParams{Zip5: "00000", Age: 70, Gender: "M"})
		if !IsClientError(err) {
			t.Fatalf("call %d: expected client error, got %v", i+1, err)
		}
	}
}

func TestQuotesPacesOutboundRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL:              srv.URL,
		HTTPClient:           srv.Client(),
		BreakerFailures:      1,
		MaxRequestsPerSecond: 1,
	}, &stubTokens{token: "tok"}, logger.New("test"))
	params := QuoteParams{Zip5: "75001", Age: 70, Gender: "M"}

	if _, err := c.Quotes(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := c.Quotes(ctx, params); !errors.Is(err, ErrPaced) {
		t.Fatalf("expected ErrPaced, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected the paced request to stay local, got %d calls", calls.Load())
	}

	if _, err := c.Quotes(context.Background(), params); err != nil {
		t.Fatalf("expected pacing not to open the breaker, got %v", err)
	}
}
