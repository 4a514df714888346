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

	"github.com/voxlane/go-frontdesk/pkg/audio"
)

const (
	openAITTSURL     = "https://api.openai.com/v1/audio/speech"
	openAIModelsURL  = "https://api.openai.com/v1/models"
	providerOpenAI   = "openai"
	openAIPCMRate    = 24000
	openAIDecimation = openAIPCMRate / SampleRate
)

// OpenAI voice options.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAI model options.
const (
	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// OpenAI implements Provider for OpenAI TTS. The API cannot emit mu-law, so
// responses come back as 24kHz PCM and are transcoded to telephony format
// before they leave this package. Used as the fallback in the provider chain.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates a new OpenAI synthesis provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceNova
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceNova
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAITTSURL
	}

	return &OpenAI{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "synth.openai"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete mu-law buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	payload := map[string]any{
		"model":           o.config.ModelID,
		"voice":           o.config.VoiceID,
		"input":           text,
		"response_format": "pcm",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, o.parseError(resp)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}

	ulaw := audio.PCM16ToMuLaw(pcm, openAIDecimation)

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"pcm_bytes", len(pcm),
		"ulaw_bytes", len(ulaw),
		"latency_ms", latency,
		"voice", o.config.VoiceID,
	)

	return &AudioResult{
		Audio:     ulaw,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Stream converts text to audio. The OpenAI speech endpoint does not support
// chunked streaming, so this synthesizes the full buffer and wraps it.
func (o *OpenAI) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := o.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio}, nil
}

// Health checks API connectivity via the models endpoint.
func (o *OpenAI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", openAIModelsURL, nil)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// doWithRetry performs the request with retry logic.
func (o *OpenAI) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := o.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerOpenAI, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = o.parseError(resp)
			o.logger.Warn("retrying request",
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
func (o *OpenAI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerOpenAI,
	}
}

// bufferStream wraps a byte slice as AudioStream.
type bufferStream struct {
	data   []byte
	offset int
}

// Read returns the remaining buffer in one chunk.
func (s *bufferStream) Read() ([]byte, error) {
	if s.offset >= len(s.data) {
		return nil, nil
	}
	chunk := s.data[s.offset:]
	s.offset = len(s.data)
	return chunk, nil
}

// Close releases resources.
func (s *bufferStream) Close() error {
	return nil
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
