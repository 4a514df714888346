package call

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/voxlane/go-frontdesk/internal/config"
	"github.com/voxlane/go-frontdesk/pkg/dialogue"
	"github.com/voxlane/go-frontdesk/pkg/notify"
	"github.com/voxlane/go-frontdesk/pkg/synth"
	"github.com/voxlane/go-frontdesk/pkg/telephony"
)

// testSnapshot disables the greeting so synthesis stays out of the way unless
// a test asks for it.
func testSnapshot() *config.Snapshot {
	return &config.Snapshot{
		Greeting:           "",
		FallbackUtterance:  config.DefaultFallback,
		ApologyUtterance:   config.DefaultApology,
		DefaultCountryCode: "+1",
	}
}

// closedConn returns a media connection that swallows writes, so paced audio
// has somewhere harmless to go.
func closedConn() *telephony.Conn {
	conn := telephony.NewConn(nil)
	conn.MarkClosed()
	return conn
}

func startMessage(withheld bool) *telephony.Message {
	caller := "+14155550123"
	if withheld {
		caller = ""
	}
	return &telephony.Message{
		Event: telephony.EventStart,
		Start: &telephony.StartPayload{
			StreamSID:      "MZ1",
			CallSID:        "CA1",
			Caller:         caller,
			CallerWithheld: withheld,
		},
	}
}

func stopMessage() *telephony.Message {
	return &telephony.Message{
		Event: telephony.EventStop,
		Stop:  &telephony.StopPayload{StreamSID: "MZ1", CallSID: "CA1"},
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestSession(t *testing.T, mock *dialogue.Mock, sink *captureSink, mutate func(*SessionConfig)) *Session {
	t.Helper()
	cfg := SessionConfig{
		Snapshot:  testSnapshot(),
		Dialogue:  mock,
		Synth:     synth.NewMock(),
		Finalizer: NewFinalizer(sink, nil, slog.Default()),
		Gate:      testGateConfig(),
		Logger:    slog.Default(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	sess := NewSession(closedConn(), cfg)
	go sess.Run()
	return sess
}

func TestSessionLeadCaptureEndToEnd(t *testing.T) {
	mock := dialogue.NewMock()
	sink := &captureSink{}
	sess := newTestSession(t, mock, sink, nil)

	sess.HandleTransportMessage(startMessage(true))
	waitFor(t, mock.IsConnected, "dialogue never connected")

	say := func(text string) {
		mock.SimulateTranscript(dialogue.RoleCaller, text)
		waitForRequests := mock.Requests() + 1
		waitFor(t, func() bool { return mock.Requests() >= waitForRequests },
			"debounce never produced a response request")
		mock.SimulateResponseDone()
	}

	say("Hi, my name is John Smith")
	say("Please call me back")
	say("My number is 415 555 0123")

	sess.HandleTransportMessage(stopMessage())

	waitFor(t, func() bool { return len(sink.kinds()) == 2 }, "finalization events never delivered")

	kinds := sink.kinds()
	if kinds[1] != notify.KindFinal {
		t.Fatalf("outcome = %v, want FINAL (reason %q)", kinds[1], sink.event(1).Lead.Reason)
	}
	lead := sink.event(1).Lead
	if lead.FullName != "John Smith" {
		t.Errorf("FullName = %q", lead.FullName)
	}
	if lead.CallbackToNumber != "+14155550123" {
		t.Errorf("CallbackToNumber = %q, want +14155550123", lead.CallbackToNumber)
	}
	if got := sink.event(1).EndReason; got != "stop" {
		t.Errorf("EndReason = %q, want stop", got)
	}
}

func TestSessionForwardsCallerAudio(t *testing.T) {
	mock := dialogue.NewMock()
	sink := &captureSink{}
	sess := newTestSession(t, mock, sink, nil)

	sess.HandleTransportMessage(startMessage(false))
	waitFor(t, mock.IsConnected, "dialogue never connected")

	sess.HandleTransportMessage(&telephony.Message{
		Event: telephony.EventMedia,
		Media: &telephony.MediaPayload{StreamSID: "MZ1", Audio: []byte{1, 2, 3}},
	})

	waitFor(t, func() bool { return len(mock.SentAudio()) == 1 }, "caller audio not forwarded")

	sess.HandleTransportMessage(stopMessage())
	waitFor(t, func() bool { return len(sink.kinds()) == 2 }, "finalization events never delivered")
}

func TestSessionDropsAudioBeforeConnect(t *testing.T) {
	mock := dialogue.NewMock()
	// Hold the provider in a connecting state for the whole test.
	release := make(chan struct{})
	mock.ConnectFunc = func(ctx context.Context) error {
		<-release
		return errors.New("cancelled")
	}
	defer close(release)

	sink := &captureSink{}
	sess := newTestSession(t, mock, sink, nil)

	sess.HandleTransportMessage(startMessage(false))
	sess.HandleTransportMessage(&telephony.Message{
		Event: telephony.EventMedia,
		Media: &telephony.MediaPayload{StreamSID: "MZ1", Audio: []byte{1}},
	})

	time.Sleep(20 * time.Millisecond)
	if got := len(mock.SentAudio()); got != 0 {
		t.Errorf("forwarded %d chunks before connect, want 0", got)
	}
}

func TestSessionSecondarySwap(t *testing.T) {
	primary := dialogue.NewMock()
	secondary := dialogue.NewMock()
	sink := &captureSink{}
	sess := newTestSession(t, primary, sink, func(cfg *SessionConfig) {
		cfg.Secondary = func() (dialogue.Provider, error) { return secondary, nil }
	})

	sess.HandleTransportMessage(startMessage(false))
	waitFor(t, primary.IsConnected, "primary never connected")

	primary.SimulateError(errors.New("upstream reset"))
	waitFor(t, secondary.IsConnected, "secondary never installed")
	waitFor(t, func() bool { return !primary.IsConnected() }, "primary never closed")

	// Conversation continues through the replacement.
	secondary.SimulateTranscript(dialogue.RoleCaller, "are you still there")
	waitFor(t, func() bool { return secondary.Requests() == 1 },
		"replacement provider not driving turns")
}

func TestSessionIdleTimeout(t *testing.T) {
	mock := dialogue.NewMock()
	sink := &captureSink{}
	sess := newTestSession(t, mock, sink, func(cfg *SessionConfig) {
		cfg.IdleTimeout = 30 * time.Millisecond
	})

	sess.HandleTransportMessage(startMessage(false))
	waitFor(t, func() bool { return len(sink.kinds()) == 2 }, "idle timeout never finalized the call")

	if got := sink.event(0).EndReason; got != "idle_timeout" {
		t.Errorf("EndReason = %q, want idle_timeout", got)
	}
}

func TestSessionTransportCloseFinalizesOnce(t *testing.T) {
	mock := dialogue.NewMock()
	sink := &captureSink{}
	sess := newTestSession(t, mock, sink, nil)

	sess.HandleTransportMessage(startMessage(false))
	waitFor(t, mock.IsConnected, "dialogue never connected")

	// Stop and close race; exactly one finalization wins.
	sess.HandleTransportMessage(stopMessage())
	sess.HandleTransportClosed(nil)

	waitFor(t, func() bool { return len(sink.kinds()) >= 2 }, "finalization events never delivered")
	time.Sleep(20 * time.Millisecond)
	if got := len(sink.kinds()); got != 2 {
		t.Errorf("delivered %d events after racing teardown, want 2", got)
	}
}
