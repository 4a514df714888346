// Package dialogue provides the client side of the realtime speech-dialogue
// collaborator: caller audio streams up, transcripts and generated response
// text stream back.
//
// The collaborator runs speech recognition and language generation remotely;
// this package only handles the WebSocket session and its message protocol.
// Response audio is NOT produced here — the collaborator returns text, which
// the call session hands to the synthesis provider.
//
// Example usage:
//
//	provider, err := dialogue.NewRealtime(
//	    dialogue.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    dialogue.WithSystemPrompt(instructions),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	provider.OnTranscript(func(role dialogue.Role, text string) {
//	    // Caller said something
//	})
//	provider.OnResponseText(func(text string) {
//	    // Hand text to synthesis
//	})
//
//	if err := provider.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
package dialogue

import "context"

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Provider is the interface for dialogue collaborators.
// The session contract allows at most one outstanding response-generation
// request; callers (the TurnGate) are responsible for enforcing it.
type Provider interface {
	// Connect establishes the session. Call after setting up handlers.
	Connect(ctx context.Context) error

	// Close shuts down the session and releases resources.
	Close() error

	// IsConnected returns true while the session is live.
	IsConnected() bool

	// SendAudio streams one chunk of caller audio to the collaborator.
	SendAudio(audio []byte) error

	// RequestResponse asks the collaborator to generate a response from
	// the conversation so far.
	RequestResponse() error

	// OnTranscript sets the callback for completed transcript entries.
	OnTranscript(fn func(role Role, text string))

	// OnResponseText sets the callback for completed response text.
	OnResponseText(fn func(text string))

	// OnResponseDone sets the callback for the collaborator's own
	// response-finished acknowledgment.
	OnResponseDone(fn func())

	// OnSpeechStarted sets the callback for the caller-started-speaking
	// VAD signal.
	OnSpeechStarted(fn func())

	// OnSpeechStopped sets the callback for the caller-stopped-speaking
	// VAD signal.
	OnSpeechStopped(fn func())

	// OnError sets the callback for session errors.
	OnError(fn func(err error))
}

// ConnectionState represents the session connection state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
