package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"medsupp_backend/internal/scheduler"
)

const webhookTimeout = 15 * time.Second

// WebhookClient posts call requests to an automation webhook.
type WebhookClient struct {
	url  string
	http *http.Client
}

// NewWebhookClient creates a client for url.
func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{url: url, http: &http.Client{Timeout: webhookTimeout}}
}

// DeliverCallRequest POSTs payload as JSON. Client errors other than 408
// and 429 are wrapped in scheduler.ErrPermanent.
func (c *WebhookClient) DeliverCallRequest(ctx context.Context, payload scheduler.CallRequestPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", err, scheduler.ErrPermanent)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("webhook status %d: %w", resp.StatusCode, scheduler.ErrPermanent)
	default:
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
}

var _ scheduler.CallRequestDeliverer = (*WebhookClient)(nil)
