package telephony

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeStart(t *testing.T) {
	tests := []struct {
		name         string
		caller       string
		wantWithheld bool
	}{
		{"caller id present", "+14155550123", false},
		{"anonymous", "anonymous", true},
		{"restricted", "Restricted", true},
		{"unknown", "unknown", true},
		{"keypad anonymous", "+266696687", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{
				"event": "start",
				"sequenceNumber": "1",
				"start": {
					"streamSid": "MZ18ad3ab5a668481ce02b83e7395059f0",
					"accountSid": "AC123",
					"callSid": "CA456",
					"customParameters": {
						"callSid": "CA456",
						"caller": "` + tt.caller + `"
					},
					"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1}
				},
				"streamSid": "MZ18ad3ab5a668481ce02b83e7395059f0"
			}`
			msg, err := Decode([]byte(raw))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if msg.Event != EventStart || msg.Start == nil {
				t.Fatalf("decoded %+v, want start payload", msg)
			}
			if msg.Start.StreamSID != "MZ18ad3ab5a668481ce02b83e7395059f0" {
				t.Errorf("StreamSID = %q", msg.Start.StreamSID)
			}
			if msg.Start.CallSID != "CA456" {
				t.Errorf("CallSID = %q", msg.Start.CallSID)
			}
			if msg.Start.Caller != tt.caller {
				t.Errorf("Caller = %q, want %q", msg.Start.Caller, tt.caller)
			}
			if msg.Start.CallerWithheld != tt.wantWithheld {
				t.Errorf("CallerWithheld = %v, want %v", msg.Start.CallerWithheld, tt.wantWithheld)
			}
		})
	}
}

func TestDecodeStartWithoutStreamSID(t *testing.T) {
	raw := `{"event": "start", "start": {"callSid": "CA456"}}`
	if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("err = %v, want ErrMalformedMessage", err)
	}
}

func TestDecodeMedia(t *testing.T) {
	audio := []byte{0xFF, 0x7F, 0x00, 0x80}
	raw := `{
		"event": "media",
		"streamSid": "MZ1",
		"media": {"track": "inbound", "chunk": "2", "timestamp": "20", "payload": "` +
		base64.StdEncoding.EncodeToString(audio) + `"}
	}`
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Event != EventMedia || msg.Media == nil {
		t.Fatalf("decoded %+v, want media payload", msg)
	}
	if string(msg.Media.Audio) != string(audio) {
		t.Errorf("Audio = %v, want %v", msg.Media.Audio, audio)
	}

	t.Run("bad base64", func(t *testing.T) {
		raw := `{"event": "media", "media": {"payload": "!!not base64!!"}}`
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("err = %v, want ErrMalformedMessage", err)
		}
	})
}

func TestDecodeStopAndMark(t *testing.T) {
	msg, err := Decode([]byte(`{"event": "stop", "streamSid": "MZ1", "stop": {"callSid": "CA456"}}`))
	if err != nil {
		t.Fatalf("Decode stop: %v", err)
	}
	if msg.Event != EventStop || msg.Stop.CallSID != "CA456" {
		t.Errorf("stop decoded as %+v", msg)
	}

	msg, err = Decode([]byte(`{"event": "mark", "streamSid": "MZ1", "mark": {"name": "greeting"}}`))
	if err != nil {
		t.Fatalf("Decode mark: %v", err)
	}
	if msg.Event != EventMark || msg.Mark.Name != "greeting" {
		t.Errorf("mark decoded as %+v", msg)
	}
}

func TestDecodeConnected(t *testing.T) {
	msg, err := Decode([]byte(`{"event": "connected", "protocol": "Call", "version": "1.0.0"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Event != EventConnected {
		t.Errorf("Event = %v, want connected", msg.Event)
	}
}

func TestDecodeRejectsUnknown(t *testing.T) {
	t.Run("unknown event tag", func(t *testing.T) {
		if _, err := Decode([]byte(`{"event": "dtmf", "dtmf": {"digit": "5"}}`)); !errors.Is(err, ErrUnknownEvent) {
			t.Errorf("err = %v, want ErrUnknownEvent", err)
		}
	})
	t.Run("not json", func(t *testing.T) {
		if _, err := Decode([]byte("not json at all")); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("err = %v, want ErrMalformedMessage", err)
		}
	})
}

func TestEncodeMedia(t *testing.T) {
	frame := []byte{1, 2, 3, 4}
	data, err := EncodeMedia("MZ1", frame)
	if err != nil {
		t.Fatalf("EncodeMedia: %v", err)
	}

	var wire struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Event != "media" || wire.StreamSID != "MZ1" {
		t.Errorf("envelope = %+v", wire)
	}
	decoded, err := base64.StdEncoding.DecodeString(wire.Media.Payload)
	if err != nil || string(decoded) != string(frame) {
		t.Errorf("payload round trip = %v, %v", decoded, err)
	}
}

func TestConnectStreamTwiML(t *testing.T) {
	twiml := ConnectStreamTwiML("agent.example.com", "CA456", "+14155550123")

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`url="wss://agent.example.com/voice/media"`,
		`<Parameter name="callSid" value="CA456"/>`,
		`<Parameter name="caller" value="+14155550123"/>`,
	} {
		if !strings.Contains(twiml, want) {
			t.Errorf("TwiML missing %q:\n%s", want, twiml)
		}
	}

	t.Run("escapes attribute values", func(t *testing.T) {
		twiml := ConnectStreamTwiML("agent.example.com", `CA"456`, "a&b<c")
		if strings.Contains(twiml, `value="CA"456"`) {
			t.Error("call sid not escaped")
		}
		if !strings.Contains(twiml, "a&amp;b&lt;c") {
			t.Errorf("caller not escaped:\n%s", twiml)
		}
	})
}
