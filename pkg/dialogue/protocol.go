package dialogue

import (
	"encoding/json"
	"fmt"
)

// Wire protocol for the realtime collaborator session. Server events are
// decoded as a tagged union keyed on "type": every event type we handle has a
// dedicated shape, and anything else is a hard decode error. Heuristic
// field-scanning of unknown payloads caused silent drift against upstream
// protocol revisions, so the decoder refuses what it does not recognize.

// Client message types.
const (
	msgSessionUpdate  = "session.update"
	msgAudioAppend    = "input_audio_buffer.append"
	msgResponseCreate = "response.create"
	msgResponseCancel = "response.cancel"
)

// Server event types, per the 2024-12-17 protocol revision.
const (
	evtSessionCreated      = "session.created"
	evtSessionUpdated      = "session.updated"
	evtSpeechStarted       = "input_audio_buffer.speech_started"
	evtSpeechStopped       = "input_audio_buffer.speech_stopped"
	evtAudioCommitted      = "input_audio_buffer.committed"
	evtItemCreated         = "conversation.item.created"
	evtTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	evtTranscriptFailed    = "conversation.item.input_audio_transcription.failed"
	evtResponseCreated     = "response.created"
	evtResponseTextDelta   = "response.text.delta"
	evtResponseTextDone    = "response.text.done"
	evtResponseOutputDone  = "response.output_item.done"
	evtResponseDone        = "response.done"
	evtRateLimitsUpdated   = "rate_limits.updated"
	evtError               = "error"
)

type sessionUpdateMsg struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string          `json:"modalities"`
	Instructions            string            `json:"instructions"`
	InputAudioFormat        string            `json:"input_audio_format"`
	InputAudioTranscription *transcriptionCfg `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetectionCfg `json:"turn_detection,omitempty"`
	Temperature             float64           `json:"temperature,omitempty"`
}

type transcriptionCfg struct {
	Model string `json:"model"`
}

type turnDetectionCfg struct {
	Type string `json:"type"`
}

type audioAppendMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type responseCreateMsg struct {
	Type string `json:"type"`
}

// serverEvent is the decoded union. Exactly one payload field is set,
// matching Type.
type serverEvent struct {
	Type string

	Transcript   *transcriptEvent
	TextDone     *textDoneEvent
	ResponseDone *responseDoneEvent
	Error        *errorEvent
}

type transcriptEvent struct {
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type textDoneEvent struct {
	ResponseID string `json:"response_id"`
	Text       string `json:"text"`
}

type responseDoneEvent struct {
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
}

type errorEvent struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeServerEvent parses one server message. Unknown event types and
// malformed payloads both return a *DecodeError; acknowledged-but-ignored
// event types decode to a bare serverEvent with only Type set.
func decodeServerEvent(data []byte) (*serverEvent, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if tag.Type == "" {
		return nil, &DecodeError{Cause: fmt.Errorf("missing type tag")}
	}

	evt := &serverEvent{Type: tag.Type}
	switch tag.Type {
	case evtTranscriptCompleted:
		var payload transcriptEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, &DecodeError{Type: tag.Type, Cause: err}
		}
		evt.Transcript = &payload

	case evtResponseTextDone:
		var payload textDoneEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, &DecodeError{Type: tag.Type, Cause: err}
		}
		evt.TextDone = &payload

	case evtResponseDone:
		var payload responseDoneEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, &DecodeError{Type: tag.Type, Cause: err}
		}
		evt.ResponseDone = &payload

	case evtError:
		var payload errorEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, &DecodeError{Type: tag.Type, Cause: err}
		}
		evt.Error = &payload

	case evtSessionCreated, evtSessionUpdated,
		evtSpeechStarted, evtSpeechStopped, evtAudioCommitted,
		evtItemCreated, evtTranscriptFailed,
		evtResponseCreated, evtResponseTextDelta, evtResponseOutputDone,
		evtRateLimitsUpdated:
		// Known, no payload we care about beyond the type.

	default:
		return nil, &DecodeError{Type: tag.Type}
	}
	return evt, nil
}
