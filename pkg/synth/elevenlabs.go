package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs model IDs.
const (
	// ModelFlashV2_5 is the fastest multilingual model (~150ms latency).
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelTurboV2_5 is the fastest English model (~200ms latency).
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model.
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs implements Provider for ElevenLabs TTS, requesting mu-law 8kHz
// output directly so no transcoding is needed.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs synthesis provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "synth.elevenlabs"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, e.config.VoiceID, OutputEncoding)

	body, err := json.Marshal(e.buildPayload(text))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
	}
	e.setHeaders(req)

	resp, err := e.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, e.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}

	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Stream converts text to audio with streaming output for lowest latency.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (AudioStream, error) {
	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		e.baseURL, e.config.VoiceID, OutputEncoding)

	body, err := json.Marshal(e.buildPayload(text))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}

	// Streaming requests get the longer timeout.
	client := &http.Client{Timeout: e.config.StreamTimeout}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
	}
	e.setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, e.parseError(resp)
	}

	return &httpStream{body: resp.Body}, nil
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/user", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// buildPayload constructs the API request payload.
func (e *ElevenLabs) buildPayload(text string) map[string]any {
	return map[string]any{
		"text":     text,
		"model_id": e.config.ModelID,
		"voice_settings": map[string]any{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
		},
	}
}

// setHeaders sets required HTTP headers.
func (e *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/basic")
}

// doWithRetry performs the request with retry logic.
func (e *ElevenLabs) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerElevenLabs, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = e.parseError(resp)
			e.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (e *ElevenLabs) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		message = errResp.Detail.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerElevenLabs,
	}
}

// httpStream wraps an HTTP response body as AudioStream.
type httpStream struct {
	body io.ReadCloser
	buf  [4096]byte
}

// Read returns the next audio chunk.
func (s *httpStream) Read() ([]byte, error) {
	n, err := s.body.Read(s.buf[:])
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}
	if err == io.EOF {
		return nil, nil
	}
	return nil, err
}

// Close stops the stream.
func (s *httpStream) Close() error {
	return s.body.Close()
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
