// Package config provides configuration for the frontdesk server.
//
// Process-level settings (listen address, credentials) are read once from the
// environment at startup. Per-agent settings (greeting, prompt, voice,
// webhooks) live in a Snapshot that is replaced wholesale on refresh, so a
// call session holding a snapshot always sees a consistent view.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Defaults for process configuration.
const (
	DefaultListenAddr  = ":8080"
	DefaultSnapshotTTL = 5 * time.Minute
)

// ErrMissingAdminToken indicates the admin reload endpoint cannot be enabled.
var ErrMissingAdminToken = errors.New("config: ADMIN_TOKEN is not set")

// Config holds process-level settings read from the environment at startup.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// PublicHost is the externally reachable host used in TwiML stream URLs.
	PublicHost string

	// AdminToken is the shared secret for the admin reload endpoint.
	// Empty disables the endpoint.
	AdminToken string

	// OpenAIAPIKey authenticates the realtime dialogue collaborator.
	OpenAIAPIKey string

	// OpenAISecondaryBaseURL, when set, enables a one-shot provider
	// substitution for dialogue failures (an OpenAI-compatible endpoint).
	OpenAISecondaryBaseURL string

	// ElevenLabsAPIKey authenticates the synthesis collaborator.
	ElevenLabsAPIKey string

	// ElevenLabsVoiceID selects the synthesis voice.
	ElevenLabsVoiceID string

	// TwilioAccountSID and TwilioAuthToken authenticate recording lookups.
	TwilioAccountSID string
	TwilioAuthToken  string

	// SnapshotTTL is how long an agent snapshot stays fresh.
	SnapshotTTL time.Duration
}

// FromEnv reads process configuration from the environment.
// Missing credentials disable the dependent feature rather than failing;
// each disabled feature is logged loudly at startup by the caller.
func FromEnv() *Config {
	return &Config{
		ListenAddr:             getenv("LISTEN_ADDR", DefaultListenAddr),
		PublicHost:             os.Getenv("PUBLIC_HOST"),
		AdminToken:             os.Getenv("ADMIN_TOKEN"),
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		OpenAISecondaryBaseURL: os.Getenv("OPENAI_SECONDARY_BASE_URL"),
		ElevenLabsAPIKey:       os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:      os.Getenv("ELEVENLABS_VOICE_ID"),
		TwilioAccountSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		SnapshotTTL:            getenvDuration("CONFIG_TTL", DefaultSnapshotTTL),
	}
}

// LogDisabledFeatures emits a warning for every feature that is disabled
// because its credentials are absent. The process still starts.
func (c *Config) LogDisabledFeatures(logger *slog.Logger) {
	if c.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, dialogue disabled: calls will not be answered")
	}
	if c.ElevenLabsAPIKey == "" || c.ElevenLabsVoiceID == "" {
		logger.Warn("ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set, synthesis disabled")
	}
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		logger.Warn("Twilio credentials not set, recording resolution disabled")
	}
	if c.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin reload endpoint disabled")
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
