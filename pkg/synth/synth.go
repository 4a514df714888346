// Package synth provides the text-to-speech side of the call: response text
// in, telephony-ready mu-law audio out.
//
// All providers emit 8kHz mono mu-law, the only format the media stream
// accepts, so synthesized audio feeds the frame pacer without conversion.
// Providers that cannot produce mu-law natively transcode before returning.
//
// Example usage:
//
//	provider, _ := synth.NewElevenLabs(
//	    synth.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    synth.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	stream, _ := provider.Stream(ctx, "Thanks for calling!")
//	for {
//	    chunk, err := stream.Read()
//	    if chunk == nil || err != nil {
//	        break
//	    }
//	    pacer.Enqueue(chunk)
//	}
package synth

import (
	"context"
	"time"
)

// Telephony audio parameters. Every provider's output matches these.
const (
	// SampleRate is the telephony sample rate in Hz.
	SampleRate = 8000

	// OutputEncoding is the wire encoding name used by provider APIs.
	OutputEncoding = "ulaw_8000"
)

// Provider defines the synthesis provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	// Use this for short fixed utterances like the greeting.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest
	// latency. Audio chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error
}

// AudioResult represents a complete synthesis result.
type AudioResult struct {
	// Audio contains raw 8kHz mono mu-law bytes.
	Audio []byte

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// Duration returns the playback duration of the result. Mu-law is one byte
// per sample.
func (r *AudioResult) Duration() time.Duration {
	return time.Duration(len(r.Audio)) * time.Second / SampleRate
}
