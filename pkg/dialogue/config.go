package dialogue

import (
	"log/slog"
	"time"
)

// Config holds configuration for dialogue providers.
type Config struct {
	// APIKey is the authentication key for the collaborator.
	APIKey string

	// BaseURL overrides the default WebSocket endpoint.
	BaseURL string

	// Model is the realtime model to use.
	Model string

	// SystemPrompt is the session instruction.
	SystemPrompt string

	// Temperature controls response randomness (0.0-1.0).
	Temperature float64

	// InputFormat is the audio encoding of caller audio.
	InputFormat string

	// Timeout is the connection timeout.
	Timeout time.Duration

	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-realtime-preview-2024-12-17",
		Temperature: 0.7,
		InputFormat: "g711_ulaw",
		Timeout:     30 * time.Second,
		ReadTimeout: 5 * time.Minute,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the WebSocket endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the realtime model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithSystemPrompt sets the session instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) { c.SystemPrompt = prompt }
}

// WithTemperature sets the response temperature.
func WithTemperature(temp float64) Option {
	return func(c *Config) { c.Temperature = temp }
}

// WithInputFormat sets the caller audio encoding.
func WithInputFormat(format string) Option {
	return func(c *Config) { c.InputFormat = format }
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
