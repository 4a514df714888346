// Package call owns the lifecycle of one phone call: the turn-taking state
// machine, the per-call session event loop, deterministic lead extraction,
// and the run-once finalization gate.
package call

import (
	"sync/atomic"
	"time"

	"github.com/voxlane/go-frontdesk/pkg/dialogue"
)

// TranscriptEntry is one completed utterance in arrival order.
type TranscriptEntry struct {
	Role dialogue.Role
	Text string
	At   time.Time
}

// CallState holds one call's identity and transcript. It is owned by the
// session's event loop; only the finalized flag is touched from other
// goroutines, which is why it alone is atomic.
type CallState struct {
	// ID is the random correlation id for this call.
	ID string

	// StreamSID is the transport's media stream id.
	StreamSID string

	// CallSID is the telephony provider's call id.
	CallSID string

	// Caller is the raw caller identifier.
	Caller string

	// CallerWithheld is true when the caller id was anonymous/restricted.
	CallerWithheld bool

	StartedAt time.Time
	EndedAt   time.Time

	// Transcript is the ordered log of completed utterances.
	Transcript []TranscriptEntry

	finalized atomic.Bool
}

// AppendTranscript records one completed utterance.
func (s *CallState) AppendTranscript(role dialogue.Role, text string, at time.Time) {
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Text: text, At: at})
}

// MarkFinalized flips the finalized flag. It returns true exactly once; a
// second caller (close racing with error) gets false and must do nothing.
func (s *CallState) MarkFinalized() bool {
	return s.finalized.CompareAndSwap(false, true)
}

// Finalized reports whether finalization has run.
func (s *CallState) Finalized() bool {
	return s.finalized.Load()
}

// Duration returns the elapsed call time, or zero if timestamps are missing.
func (s *CallState) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
