package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxlane/go-frontdesk/internal/httpc"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
	defaultTimeout  = 5 * time.Second
)

// Webhook delivers events as POSTed JSON with bounded timeout and a fixed
// number of linear-backoff retries.
type Webhook struct {
	url      string
	client   *http.Client
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithAttempts sets the delivery attempt count.
func WithAttempts(n int) WebhookOption {
	return func(w *Webhook) { w.attempts = n }
}

// WithBackoff sets the delay added between attempts.
func WithBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = client }
}

// WithWebhookLogger sets the structured logger.
func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = logger }
}

// NewWebhook creates a webhook sink posting to url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:      url,
		client:   httpc.NewClient(defaultTimeout),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		logger:   slog.Default().With("component", "notify.webhook"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Compile-time interface check.
var _ Sink = (*Webhook)(nil)

// Deliver posts the event, retrying with linear backoff. The error from the
// last attempt is returned if all attempts fail.
func (w *Webhook) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(attempt-1)):
			}
		}

		lastErr = w.post(ctx, body)
		if lastErr == nil {
			w.logger.Debug("delivered notification",
				"kind", event.Kind,
				"call_id", event.CallID,
				"attempt", attempt,
			)
			return nil
		}

		w.logger.Warn("notification delivery failed",
			"kind", event.Kind,
			"call_id", event.CallID,
			"attempt", attempt,
			"error", lastErr,
		)
	}
	return lastErr
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	resp, err := httpc.PostWith(ctx, w.client, w.url, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
