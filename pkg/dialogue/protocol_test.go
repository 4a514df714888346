package dialogue

import (
	"errors"
	"testing"
)

func TestDecodeServerEvent(t *testing.T) {
	t.Run("transcript completed", func(t *testing.T) {
		raw := `{
			"type": "conversation.item.input_audio_transcription.completed",
			"item_id": "item_1",
			"transcript": "Hi, my name is John Smith"
		}`
		evt, err := decodeServerEvent([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if evt.Transcript == nil || evt.Transcript.Transcript != "Hi, my name is John Smith" {
			t.Errorf("transcript payload = %+v", evt.Transcript)
		}
	})

	t.Run("response text done", func(t *testing.T) {
		raw := `{"type": "response.text.done", "response_id": "resp_1", "text": "How can I help?"}`
		evt, err := decodeServerEvent([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if evt.TextDone == nil || evt.TextDone.Text != "How can I help?" {
			t.Errorf("text done payload = %+v", evt.TextDone)
		}
	})

	t.Run("response done", func(t *testing.T) {
		raw := `{"type": "response.done", "response": {"id": "resp_1", "status": "completed"}}`
		evt, err := decodeServerEvent([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if evt.ResponseDone == nil || evt.ResponseDone.Response.Status != "completed" {
			t.Errorf("response done payload = %+v", evt.ResponseDone)
		}
	})

	t.Run("error event", func(t *testing.T) {
		raw := `{"type": "error", "error": {"type": "invalid_request_error", "code": "bad", "message": "nope"}}`
		evt, err := decodeServerEvent([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if evt.Error == nil || evt.Error.Error.Message != "nope" {
			t.Errorf("error payload = %+v", evt.Error)
		}
	})

	t.Run("known ignored types decode bare", func(t *testing.T) {
		for _, typ := range []string{
			"session.created",
			"input_audio_buffer.speech_started",
			"response.text.delta",
			"rate_limits.updated",
		} {
			evt, err := decodeServerEvent([]byte(`{"type": "` + typ + `"}`))
			if err != nil {
				t.Errorf("%s: %v", typ, err)
				continue
			}
			if evt.Type != typ {
				t.Errorf("Type = %q, want %q", evt.Type, typ)
			}
			if evt.Transcript != nil || evt.TextDone != nil || evt.ResponseDone != nil || evt.Error != nil {
				t.Errorf("%s: unexpected payload set", typ)
			}
		}
	})
}

func TestDecodeServerEventRejects(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := decodeServerEvent([]byte(`{"type": "response.audio.delta", "delta": "AAAA"}`))
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("err = %v, want *DecodeError", err)
		}
		if decodeErr.Type != "response.audio.delta" {
			t.Errorf("DecodeError.Type = %q", decodeErr.Type)
		}
	})

	t.Run("missing type tag", func(t *testing.T) {
		var decodeErr *DecodeError
		if _, err := decodeServerEvent([]byte(`{"event_id": "evt_1"}`)); !errors.As(err, &decodeErr) {
			t.Errorf("err = %v, want *DecodeError", err)
		}
	})

	t.Run("not json", func(t *testing.T) {
		var decodeErr *DecodeError
		if _, err := decodeServerEvent([]byte("garbage")); !errors.As(err, &decodeErr) {
			t.Errorf("err = %v, want *DecodeError", err)
		}
	})
}
