package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Agent defaults used when the loader leaves a field empty.
const (
	DefaultGreeting = "Hi, you've reached the front desk. How can I help you today?"
	DefaultFallback = "Sorry, I didn't catch that. Could you say it again?"
	DefaultApology  = "I'm sorry, something went wrong on my end. Please try again in a moment."
	DefaultPrompt   = "You are a friendly receptionist taking messages over the phone. " +
		"Collect the caller's name, the reason for their call, and a callback number. " +
		"Keep replies short and conversational."
	DefaultCountryCode = "+1"
)

// Snapshot is an immutable view of agent configuration.
// A refresh builds a new Snapshot and swaps the pointer; snapshots held by
// in-flight calls are never mutated.
type Snapshot struct {
	// Greeting is spoken when a call connects.
	Greeting string

	// SystemPrompt is the dialogue collaborator's instruction.
	SystemPrompt string

	// FallbackUtterance is the "didn't catch that" retry line.
	FallbackUtterance string

	// ApologyUtterance is spoken when an upstream collaborator fails.
	ApologyUtterance string

	// WebhookURL receives notification events. Empty disables delivery.
	WebhookURL string

	// CallLogEnabled controls whether CALL_LOG events are emitted.
	CallLogEnabled bool

	// DefaultCountryCode prefixes captured local callback numbers.
	DefaultCountryCode string

	// LoadedAt is when this snapshot was built.
	LoadedAt time.Time
}

// Loader fetches agent configuration from its backing store.
// The store's mechanics (remote service, file, environment) are the loader's
// concern; the Store only cares about getting a fresh Snapshot.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// EnvLoader reads agent configuration from the environment.
type EnvLoader struct{}

// Load implements Loader.
func (EnvLoader) Load(_ context.Context) (*Snapshot, error) {
	return &Snapshot{
		Greeting:           getenv("AGENT_GREETING", DefaultGreeting),
		SystemPrompt:       getenv("AGENT_PROMPT", DefaultPrompt),
		FallbackUtterance:  getenv("AGENT_FALLBACK", DefaultFallback),
		ApologyUtterance:   getenv("AGENT_APOLOGY", DefaultApology),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		CallLogEnabled:     getenv("WEBHOOK_CALL_LOG", "true") != "false",
		DefaultCountryCode: getenv("DEFAULT_COUNTRY_CODE", DefaultCountryCode),
		LoadedAt:           time.Now(),
	}, nil
}

// Store holds the current Snapshot and refreshes it when stale.
// Refresh is an atomic pointer swap; readers never see a torn snapshot.
type Store struct {
	loader Loader
	ttl    time.Duration
	logger *slog.Logger

	cur atomic.Pointer[Snapshot]

	// refreshMu serializes refreshes so a burst of stale readers
	// triggers a single load.
	refreshMu sync.Mutex
}

// NewStore creates a Store and performs the initial load.
func NewStore(ctx context.Context, loader Loader, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		loader: loader,
		ttl:    ttl,
		logger: logger.With("component", "config.store"),
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the current snapshot, refreshing first if it is stale.
// A failed refresh keeps serving the previous snapshot.
func (s *Store) Current(ctx context.Context) *Snapshot {
	snap := s.cur.Load()
	if snap != nil && time.Since(snap.LoadedAt) < s.ttl {
		return snap
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("snapshot refresh failed, serving stale config", "error", err)
	}
	return s.cur.Load()
}

// Refresh forces a reload and swaps in the new snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if snap := s.cur.Load(); snap != nil && time.Since(snap.LoadedAt) < s.ttl {
		return nil
	}

	snap, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = time.Now()
	}
	s.cur.Store(snap)
	s.logger.Info("agent configuration refreshed",
		"webhook_configured", snap.WebhookURL != "",
		"call_log_enabled", snap.CallLogEnabled,
	)
	return nil
}

// ForceRefresh reloads regardless of snapshot age (admin trigger).
func (s *Store) ForceRefresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snap, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = time.Now()
	}
	s.cur.Store(snap)
	s.logger.Info("agent configuration force-refreshed")
	return nil
}
