// Package telephony implements the media-stream wire protocol spoken by the
// telephony provider: JSON messages over a WebSocket carrying base64 mu-law
// audio at 8 kHz, framed in 20 ms chunks.
//
// Decoding is strict: every known event shape is modeled explicitly, and a
// message that does not match a known shape is a decode error. Callers drop
// malformed messages with a log line rather than guessing at field locations.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Audio framing constants for the mu-law 8 kHz media stream.
const (
	// FrameBytes is one frame's worth of audio: 8000 Hz * 0.020 s * 1 byte.
	FrameBytes = 160

	// FrameDuration is the wall-clock cadence of outbound frames.
	FrameDuration = 20 * time.Millisecond

	// SilenceByte is the mu-law encoding of silence, used for padding.
	SilenceByte = 0xFF
)

// EventType tags a media-stream message.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
)

// Decode errors.
var (
	// ErrUnknownEvent indicates a message with an unrecognized event tag.
	ErrUnknownEvent = errors.New("telephony: unknown event")

	// ErrMalformedMessage indicates a message that failed to parse.
	ErrMalformedMessage = errors.New("telephony: malformed message")
)

// Message is the decoded form of an inbound media-stream message.
// Exactly one payload pointer is set, matching Event.
type Message struct {
	Event EventType
	Start *StartPayload
	Media *MediaPayload
	Stop  *StopPayload
	Mark  *MarkPayload
}

// StartPayload carries the stream and call correlation ids plus the caller
// identity forwarded by the voice webhook as custom parameters.
type StartPayload struct {
	StreamSID  string `json:"streamSid"`
	CallSID    string `json:"callSid"`
	AccountSID string `json:"accountSid"`

	// Caller is the caller's number, or empty when withheld.
	Caller string

	// CallerWithheld is true when the caller id was anonymous/restricted.
	CallerWithheld bool
}

// MediaPayload carries one chunk of decoded mu-law audio.
type MediaPayload struct {
	StreamSID string
	Audio     []byte
}

// StopPayload signals the end of the stream.
type StopPayload struct {
	StreamSID string
	CallSID   string
}

// MarkPayload echoes a previously sent playback mark.
type MarkPayload struct {
	StreamSID string
	Name      string
}

// Wire shapes. One struct per known protocol revision of each event; the
// envelope's event tag selects which shape must parse.

type wireEnvelope struct {
	Event string `json:"event"`
}

type wireStart struct {
	StreamSID string `json:"streamSid"`
	Start     struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		AccountSID       string            `json:"accountSid"`
		CustomParameters map[string]string `json:"customParameters"`
		MediaFormat      struct {
			Encoding   string `json:"encoding"`
			SampleRate int    `json:"sampleRate"`
			Channels   int    `json:"channels"`
		} `json:"mediaFormat"`
	} `json:"start"`
}

type wireMedia struct {
	StreamSID string `json:"streamSid"`
	Media     struct {
		Track   string `json:"track"`
		Payload string `json:"payload"`
	} `json:"media"`
}

type wireStop struct {
	StreamSID string `json:"streamSid"`
	Stop      struct {
		CallSID    string `json:"callSid"`
		AccountSID string `json:"accountSid"`
	} `json:"stop"`
}

type wireMark struct {
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// Anonymous caller id values used by carriers.
var withheldCallerIDs = map[string]bool{
	"":           true,
	"anonymous":  true,
	"Anonymous":  true,
	"restricted": true,
	"Restricted": true,
	"unknown":    true,
	"Unknown":    true,
	"+266696687": true, // spells "anonymous" on a keypad; some carriers send it
}

// Decode parses an inbound media-stream message.
// Unknown event tags and shape mismatches return an error; callers log and
// drop rather than acting on a half-parsed message.
func Decode(data []byte) (*Message, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch EventType(env.Event) {
	case EventConnected:
		return &Message{Event: EventConnected}, nil

	case EventStart:
		var m wireStart
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: start: %v", ErrMalformedMessage, err)
		}
		streamSID := m.Start.StreamSID
		if streamSID == "" {
			streamSID = m.StreamSID
		}
		if streamSID == "" {
			return nil, fmt.Errorf("%w: start without streamSid", ErrMalformedMessage)
		}
		caller := m.Start.CustomParameters["caller"]
		return &Message{
			Event: EventStart,
			Start: &StartPayload{
				StreamSID:      streamSID,
				CallSID:        m.Start.CallSID,
				AccountSID:     m.Start.AccountSID,
				Caller:         caller,
				CallerWithheld: withheldCallerIDs[caller],
			},
		}, nil

	case EventMedia:
		var m wireMedia
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: media: %v", ErrMalformedMessage, err)
		}
		audio, err := base64.StdEncoding.DecodeString(m.Media.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: media payload: %v", ErrMalformedMessage, err)
		}
		return &Message{
			Event: EventMedia,
			Media: &MediaPayload{StreamSID: m.StreamSID, Audio: audio},
		}, nil

	case EventStop:
		var m wireStop
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: stop: %v", ErrMalformedMessage, err)
		}
		return &Message{
			Event: EventStop,
			Stop:  &StopPayload{StreamSID: m.StreamSID, CallSID: m.Stop.CallSID},
		}, nil

	case EventMark:
		var m wireMark
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: mark: %v", ErrMalformedMessage, err)
		}
		return &Message{
			Event: EventMark,
			Mark:  &MarkPayload{StreamSID: m.StreamSID, Name: m.Mark.Name},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// outboundMedia is the wire shape of an outbound audio frame.
type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// EncodeMedia builds one outbound media message carrying a single frame.
func EncodeMedia(streamSID string, frame []byte) ([]byte, error) {
	msg := outboundMedia{Event: string(EventMedia), StreamSID: streamSID}
	msg.Media.Payload = base64.StdEncoding.EncodeToString(frame)
	return json.Marshal(msg)
}
