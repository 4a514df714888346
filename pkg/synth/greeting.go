package synth

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// GreetingCache holds pre-synthesized audio for a fixed utterance so the
// first words of a call play without a synthesis round trip. Warm replaces
// the cached audio atomically; a miss just means the caller synthesizes
// on demand.
type GreetingCache struct {
	provider Provider
	logger   *slog.Logger

	cur atomic.Pointer[greetingEntry]
}

type greetingEntry struct {
	text  string
	audio []byte
}

// NewGreetingCache creates an empty cache backed by provider.
func NewGreetingCache(provider Provider, logger *slog.Logger) *GreetingCache {
	return &GreetingCache{
		provider: provider,
		logger:   logger.With("component", "synth.greeting"),
	}
}

// Warm synthesizes text and caches the result. Safe to call again when the
// configured greeting changes.
func (g *GreetingCache) Warm(ctx context.Context, text string) error {
	result, err := g.provider.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	g.cur.Store(&greetingEntry{text: text, audio: result.Audio})
	g.logger.Info("greeting warmed", "chars", len(text), "bytes", len(result.Audio))
	return nil
}

// Audio returns the cached audio if it matches text, or nil on a miss.
func (g *GreetingCache) Audio(text string) []byte {
	entry := g.cur.Load()
	if entry == nil || entry.text != text {
		return nil
	}
	return entry.audio
}
