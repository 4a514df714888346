package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/voxlane/go-frontdesk/pkg/dialogue"
	"github.com/voxlane/go-frontdesk/pkg/notify"
	"github.com/voxlane/go-frontdesk/pkg/recording"
)

// captureSink records delivered events.
type captureSink struct {
	mu     sync.Mutex
	events []*notify.Event
	err    error
}

func (s *captureSink) Deliver(_ context.Context, event *notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) event(i int) *notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[i]
}

func (s *captureSink) kinds() []notify.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Kind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

// fixedResolver returns a canned recording or error.
type fixedResolver struct {
	meta *recording.Metadata
	err  error
}

func (r *fixedResolver) Resolve(context.Context, string) (*recording.Metadata, error) {
	return r.meta, r.err
}

func newTestState() *CallState {
	return &CallState{
		ID:        "test-call",
		CallSID:   "CA123",
		Caller:    "+14155550123",
		StartedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 8, 25, 12, 1, 30, 0, time.UTC),
	}
}

func completeLead() *LeadRecord {
	return &LeadRecord{
		FullName: "John Smith",
		Subject:  "call me back about the boiler",
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	sink := &captureSink{}
	f := NewFinalizer(sink, nil, slog.Default())

	state := newTestState()
	lead := completeLead()

	// Close racing with error: both paths call Finalize.
	f.Finalize(context.Background(), state, lead, "close")
	f.Finalize(context.Background(), state, lead, "error")

	kinds := sink.kinds()
	if len(kinds) != 2 {
		t.Fatalf("delivered %d events, want exactly 2 (CALL_LOG + outcome)", len(kinds))
	}
	if kinds[0] != notify.KindCallLog {
		t.Errorf("first event = %v, want CALL_LOG", kinds[0])
	}
	if kinds[1] != notify.KindFinal && kinds[1] != notify.KindAbandoned {
		t.Errorf("second event = %v, want FINAL or ABANDONED", kinds[1])
	}
}

func TestFinalizeOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		lead       *LeadRecord
		wantKind   notify.Kind
		wantReason string
	}{
		{
			name:     "complete lead is FINAL",
			lead:     completeLead(),
			wantKind: notify.KindFinal,
		},
		{
			name:       "nameless lead is ABANDONED",
			lead:       &LeadRecord{Subject: "call me back"},
			wantKind:   notify.KindAbandoned,
			wantReason: "missing_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			f := NewFinalizer(sink, nil, slog.Default())
			f.Finalize(context.Background(), newTestState(), tt.lead, "stop")

			kinds := sink.kinds()
			if len(kinds) != 2 || kinds[1] != tt.wantKind {
				t.Fatalf("kinds = %v, want [CALL_LOG %v]", kinds, tt.wantKind)
			}
			if got := sink.events[1].Lead.Reason; got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestFinalizeCallLogDisabled(t *testing.T) {
	sink := &captureSink{}
	f := NewFinalizer(sink, nil, slog.Default())
	f.CallLogEnabled = false

	f.Finalize(context.Background(), newTestState(), completeLead(), "stop")

	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != notify.KindFinal {
		t.Fatalf("kinds = %v, want only the FINAL outcome", kinds)
	}
}

func TestFinalizeRecordingFailureIsIsolated(t *testing.T) {
	sink := &captureSink{}
	resolver := &fixedResolver{err: errors.New("not materialized")}
	f := NewFinalizer(sink, resolver, slog.Default())

	f.Finalize(context.Background(), newTestState(), completeLead(), "stop")

	kinds := sink.kinds()
	if len(kinds) != 2 {
		t.Fatalf("recording failure blocked delivery, kinds = %v", kinds)
	}
	if sink.events[1].Recording != nil {
		t.Error("recording fields set despite resolution failure")
	}
}

func TestFinalizeRecordingAttached(t *testing.T) {
	sink := &captureSink{}
	resolver := &fixedResolver{meta: &recording.Metadata{
		SID:      "RE1",
		URL:      "https://api.twilio.com/recordings/RE1.mp3",
		Duration: 88,
	}}
	f := NewFinalizer(sink, resolver, slog.Default())

	f.Finalize(context.Background(), newTestState(), completeLead(), "stop")

	rec := sink.events[1].Recording
	if rec == nil || rec.SID != "RE1" || rec.Duration != 88 {
		t.Errorf("recording = %+v, want RE1/88s", rec)
	}
}

func TestFinalizeSinkFailureIsDropped(t *testing.T) {
	sink := &captureSink{err: errors.New("webhook down")}
	f := NewFinalizer(sink, nil, slog.Default())

	// Must not panic or propagate.
	f.Finalize(context.Background(), newTestState(), completeLead(), "stop")
}

func TestFinalizeNoSink(t *testing.T) {
	f := NewFinalizer(nil, nil, slog.Default())
	f.Finalize(context.Background(), newTestState(), completeLead(), "stop")
}

func TestFinalizePayload(t *testing.T) {
	sink := &captureSink{}
	f := NewFinalizer(sink, nil, slog.Default())

	state := newTestState()
	state.AppendTranscript(dialogue.RoleCaller, "hello", state.StartedAt)
	state.AppendTranscript(dialogue.RoleAgent, "hi there", state.StartedAt.Add(time.Second))

	f.Finalize(context.Background(), state, completeLead(), "stop")

	event := sink.events[0]
	if event.DurationSeconds != 90 {
		t.Errorf("DurationSeconds = %v, want 90", event.DurationSeconds)
	}
	if len(event.Transcript) != 2 {
		t.Fatalf("transcript entries = %d, want 2", len(event.Transcript))
	}
	if event.Transcript[0].Role != "caller" || event.Transcript[1].Role != "agent" {
		t.Error("transcript roles not preserved")
	}
	if event.Lead.CallbackToNumber != "+14155550123" {
		t.Errorf("callback = %q, want caller id", event.Lead.CallbackToNumber)
	}
}
