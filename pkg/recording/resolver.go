// Package recording resolves call-recording metadata after a call ends.
//
// The telephony provider materializes recordings asynchronously, so the
// resource often does not exist yet when the call finishes. Resolution is
// best-effort: bounded retries with increasing backoff, and a miss leaves the
// recording fields null without affecting call classification.
package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voxlane/go-frontdesk/internal/httpc"
)

// ErrNoRecording indicates no recording exists for the call.
var ErrNoRecording = errors.New("recording: no recording found")

// Metadata describes one resolved recording.
type Metadata struct {
	SID      string
	URL      string
	Duration float64
}

// Resolver resolves recording metadata for a call.
type Resolver interface {
	Resolve(ctx context.Context, callSID string) (*Metadata, error)
}

const (
	twilioAPIBase   = "https://api.twilio.com/2010-04-01"
	defaultAttempts = 4
	defaultBackoff  = time.Second
)

// TwilioResolver queries the Twilio recordings API with basic auth.
type TwilioResolver struct {
	accountSID string
	authToken  string
	baseURL    string
	client     *http.Client
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// TwilioOption configures a TwilioResolver.
type TwilioOption func(*TwilioResolver)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) TwilioOption {
	return func(r *TwilioResolver) { r.baseURL = url }
}

// WithAttempts sets the retry attempt count.
func WithAttempts(n int) TwilioOption {
	return func(r *TwilioResolver) { r.attempts = n }
}

// WithBackoff sets the base backoff; attempt n waits n times this.
func WithBackoff(d time.Duration) TwilioOption {
	return func(r *TwilioResolver) { r.backoff = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) TwilioOption {
	return func(r *TwilioResolver) { r.client = client }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) TwilioOption {
	return func(r *TwilioResolver) { r.logger = logger }
}

// NewTwilioResolver creates a resolver for the given account credentials.
func NewTwilioResolver(accountSID, authToken string, opts ...TwilioOption) *TwilioResolver {
	r := &TwilioResolver{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    twilioAPIBase,
		client:     httpc.Client,
		attempts:   defaultAttempts,
		backoff:    defaultBackoff,
		logger:     slog.Default().With("component", "recording.twilio"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile-time interface check.
var _ Resolver = (*TwilioResolver)(nil)

// Resolve fetches recording metadata for callSID. Attempts are spaced with
// increasing backoff because the recording may not exist immediately after
// the call ends.
func (r *TwilioResolver) Resolve(ctx context.Context, callSID string) (*Metadata, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff * time.Duration(attempt-1)):
			}
		}

		meta, err := r.fetch(ctx, callSID)
		if err == nil {
			r.logger.Debug("recording resolved",
				"call_sid", callSID,
				"recording_sid", meta.SID,
				"attempt", attempt,
			)
			return meta, nil
		}

		lastErr = err
		r.logger.Debug("recording not yet available",
			"call_sid", callSID,
			"attempt", attempt,
			"error", err,
		)
	}

	return nil, lastErr
}

func (r *TwilioResolver) fetch(ctx context.Context, callSID string) (*Metadata, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Recordings.json?CallSid=%s",
		r.baseURL, r.accountSID, url.QueryEscape(callSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(r.accountSID, r.authToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("recording: list returned status %d", resp.StatusCode)
	}

	var payload struct {
		Recordings []struct {
			SID      string `json:"sid"`
			URI      string `json:"uri"`
			Duration string `json:"duration"`
		} `json:"recordings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("recording: decode response: %w", err)
	}
	if len(payload.Recordings) == 0 {
		return nil, ErrNoRecording
	}

	rec := payload.Recordings[0]
	duration, _ := strconv.ParseFloat(rec.Duration, 64)

	return &Metadata{
		SID:      rec.SID,
		URL:      recordingMediaURL(rec.URI),
		Duration: duration,
	}, nil
}

// recordingMediaURL converts the API resource URI to a playable media URL.
func recordingMediaURL(uri string) string {
	const suffix = ".json"
	if len(uri) > len(suffix) && uri[len(uri)-len(suffix):] == suffix {
		uri = uri[:len(uri)-len(suffix)]
	}
	return "https://api.twilio.com" + uri + ".mp3"
}
