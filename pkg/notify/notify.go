// Package notify defines the call notification events and the webhook sink
// that delivers them.
//
// Three event kinds exist: CALL_LOG is emitted for every call (when
// configured); FINAL and ABANDONED are mutually exclusive and exactly one is
// emitted per call. Events are immutable snapshots — they carry copies of the
// call data, never live references.
package notify

import (
	"context"
	"time"
)

// Kind identifies a notification event type.
type Kind string

const (
	KindCallLog   Kind = "CALL_LOG"
	KindFinal     Kind = "FINAL"
	KindAbandoned Kind = "ABANDONED"
)

// TranscriptEntry is one line of the call transcript.
type TranscriptEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Lead is the captured lead summary.
type Lead struct {
	FullName         string `json:"full_name,omitempty"`
	Subject          string `json:"subject,omitempty"`
	CallbackToNumber string `json:"callback_to_number,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// Recording is resolved recording metadata. Nil fields stay null in the
// payload when resolution failed.
type Recording struct {
	SID      string  `json:"sid,omitempty"`
	URL      string  `json:"url,omitempty"`
	Duration float64 `json:"duration_seconds,omitempty"`
}

// Event is one notification. Immutable once constructed.
type Event struct {
	Kind            Kind              `json:"kind"`
	CallID          string            `json:"call_id"`
	CallSID         string            `json:"call_sid,omitempty"`
	Caller          string            `json:"caller,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         time.Time         `json:"ended_at"`
	DurationSeconds float64           `json:"duration_seconds"`
	EndReason       string            `json:"end_reason,omitempty"`
	Transcript      []TranscriptEntry `json:"transcript,omitempty"`
	Lead            *Lead             `json:"lead,omitempty"`
	Recording       *Recording        `json:"recording,omitempty"`
}

// Sink delivers notification events.
type Sink interface {
	// Deliver sends one event. Implementations retry internally; a
	// returned error means delivery ultimately failed.
	Deliver(ctx context.Context, event *Event) error
}
