package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithTimeout bounds each delivery. Default: 10s.
func WithTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for delivery.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithHeader adds a header to every request (e.g. an Authorization token).
func WithHeader(key, value string) WebhookOption {
	return func(w *Webhook) { w.header.Set(key, value) }
}

// Webhook POSTs each command as JSON to a URL and expects a 2xx response.
type Webhook struct {
	url     string
	client  *http.Client
	timeout time.Duration
	header  http.Header
}

// NewWebhook returns a Webhook posting to endpoint, which must be an absolute
// http or https URL.
func NewWebhook(endpoint string, opts ...WebhookOption) (*Webhook, error) {
	if endpoint == "" {
		return nil, errors.New("command: webhook url must not be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("command: webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("command: webhook url %q must be an absolute http or https URL", endpoint)
	}
	w := &Webhook{
		url:     endpoint,
		client:  http.DefaultClient,
		timeout: defaultWebhookTimeout,
		header:  make(http.Header),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// HandleCommand implements Handler.
func (w *Webhook) HandleCommand(ctx context.Context, cmd Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("command: webhook: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("command: webhook: build request: %w", err)
	}
	for k, v := range w.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("command: webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("command: webhook: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
