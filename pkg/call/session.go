package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxlane/go-frontdesk/internal/config"
	"github.com/voxlane/go-frontdesk/pkg/audio"
	"github.com/voxlane/go-frontdesk/pkg/dialogue"
	"github.com/voxlane/go-frontdesk/pkg/synth"
	"github.com/voxlane/go-frontdesk/pkg/telephony"
)

// Session timing defaults.
const (
	DefaultIdleTimeout = 45 * time.Second
	DefaultMaxDuration = 5 * time.Minute
)

// SessionConfig wires one call's collaborators.
type SessionConfig struct {
	// Snapshot is the configuration captured for the call's lifetime.
	Snapshot *config.Snapshot

	// Dialogue is the speech-dialogue collaborator.
	Dialogue dialogue.Provider

	// Synth is the synthesis provider (usually a chain).
	Synth synth.Provider

	// Greeting optionally serves pre-warmed greeting audio.
	Greeting *synth.GreetingCache

	// Secondary optionally builds a replacement dialogue provider after
	// an upstream failure. Used at most once per call.
	Secondary func() (dialogue.Provider, error)

	// Finalizer runs the once-per-call classification.
	Finalizer *Finalizer

	// Gate holds the turn-taking constants.
	Gate GateConfig

	IdleTimeout time.Duration
	MaxDuration time.Duration

	// OnEvent, when set, receives call lifecycle events for monitoring.
	OnEvent func(callID, kind, detail string)

	Logger *slog.Logger
}

// Session is the composition root for one call. All state mutation happens on
// the event loop goroutine: transport messages, provider callbacks and timer
// fires are posted as closures and executed in order.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	state     *CallState
	extractor *Extractor
	gate      *TurnGate
	pacer     *audio.Pacer
	conn      *telephony.Conn
	dialogue  dialogue.Provider

	events chan func()
	done   chan struct{}

	idle   *Timer
	maxDur *Timer

	lastActivity time.Time
	swapped      bool
	terminated   bool
}

// NewSession creates a session for one media-stream connection. Call Run to
// start the event loop before feeding transport messages.
func NewSession(conn *telephony.Conn, cfg SessionConfig) *Session {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.NewString()
	s := &Session{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "call.session", "call_id", id),
		state:    &CallState{ID: id},
		conn:     conn,
		dialogue: cfg.Dialogue,
		events:   make(chan func(), 256),
		done:     make(chan struct{}),
	}
	s.idle = NewTimer(s.post)
	s.maxDur = NewTimer(s.post)
	s.gate = NewTurnGate(cfg.Gate, s, s.post, s.logger)
	s.pacer = audio.NewPacer(conn,
		audio.WithDrainFunc(func() {
			s.post(s.handlePlaybackDrained)
		}),
		audio.WithPacerLogger(s.logger),
	)
	s.wireDialogue(cfg.Dialogue)
	return s
}

// ID returns the call correlation id.
func (s *Session) ID() string {
	return s.state.ID
}

// Run drives the event loop until the call terminates.
func (s *Session) Run() {
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-s.done:
			return
		}
	}
}

// post delivers fn to the event loop, dropping it if the call is done.
func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// HandleTransportMessage is called by the WebSocket read loop for each
// decoded inbound message. Safe to call from any goroutine.
func (s *Session) HandleTransportMessage(msg *telephony.Message) {
	switch msg.Event {
	case telephony.EventStart:
		start := *msg.Start
		s.post(func() { s.handleStart(&start) })
	case telephony.EventMedia:
		payload := msg.Media.Audio
		s.post(func() { s.handleMedia(payload) })
	case telephony.EventStop:
		s.post(func() { s.terminate("stop") })
	case telephony.EventConnected, telephony.EventMark:
		// Acknowledged, nothing to do.
	}
}

// HandleTransportClosed is called when the WebSocket read loop exits.
func (s *Session) HandleTransportClosed(err error) {
	reason := "close"
	if err != nil {
		reason = "error"
	}
	s.post(func() { s.terminate(reason) })
}

func (s *Session) handleStart(start *telephony.StartPayload) {
	s.state.StreamSID = start.StreamSID
	s.state.CallSID = start.CallSID
	s.state.Caller = start.Caller
	s.state.CallerWithheld = start.CallerWithheld
	s.state.StartedAt = time.Now()
	s.lastActivity = s.state.StartedAt

	s.extractor = NewExtractor(start.CallerWithheld, s.cfg.Snapshot.DefaultCountryCode)
	s.pacer.Bind(start.StreamSID)

	s.logger.Info("call started",
		"stream_sid", start.StreamSID,
		"call_sid", start.CallSID,
		"caller_withheld", start.CallerWithheld,
	)
	s.emit("started", start.CallSID)

	s.idle.Arm(s.cfg.IdleTimeout, s.handleIdleFire)
	s.maxDur.Arm(s.cfg.MaxDuration, func() { s.terminate("max_duration") })

	go s.connectDialogue()
	s.speakGreeting()
}

// connectDialogue dials the collaborator off-loop; the result posts back.
func (s *Session) connectDialogue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.dialogue.Connect(ctx); err != nil {
		s.post(func() { s.handleUpstreamError(err) })
	}
}

func (s *Session) handleMedia(payload []byte) {
	if s.terminated {
		return
	}
	s.lastActivity = time.Now()

	if s.gate.SuppressInput() {
		return
	}
	if !s.dialogue.IsConnected() {
		return
	}
	if err := s.dialogue.SendAudio(payload); err != nil {
		s.logger.Debug("audio forward failed", "error", err)
	}
}

// wireDialogue points the provider's callbacks at the event loop.
func (s *Session) wireDialogue(p dialogue.Provider) {
	p.OnTranscript(func(role dialogue.Role, text string) {
		s.post(func() { s.handleTranscript(role, text) })
	})
	p.OnResponseText(func(text string) {
		s.post(func() { s.handleResponseText(text) })
	})
	p.OnResponseDone(func() {
		s.post(s.gate.HandleResponseDone)
	})
	p.OnSpeechStarted(func() {
		s.post(func() { s.lastActivity = time.Now() })
	})
	p.OnSpeechStopped(func() {
		s.post(s.gate.HandleSpeechStopped)
	})
	p.OnError(func(err error) {
		s.post(func() { s.handleUpstreamError(err) })
	})
}

func (s *Session) handleTranscript(role dialogue.Role, text string) {
	if s.terminated {
		return
	}
	now := time.Now()
	s.lastActivity = now
	s.state.AppendTranscript(role, text, now)

	if role == dialogue.RoleCaller {
		if s.extractor != nil {
			s.extractor.Apply(text)
		}
		s.gate.HandleTranscript()
	}
	s.emit("transcript", string(role)+": "+text)
}

func (s *Session) handleResponseText(text string) {
	if s.terminated {
		return
	}
	s.gate.HandleResponseText()
	s.state.AppendTranscript(dialogue.RoleAgent, text, time.Now())
	s.emit("response", text)
	s.speak(text)
}

// handlePlaybackDrained fires when the pacer queue empties. It only counts as
// playback-finished while the gate is speaking; drains between utterances are
// noise.
func (s *Session) handlePlaybackDrained() {
	if s.terminated {
		return
	}
	if s.gate.Phase() == PhaseSpeaking {
		s.gate.HandlePlaybackFinished()
	}
}

func (s *Session) handleIdleFire() {
	remaining := s.cfg.IdleTimeout - time.Since(s.lastActivity)
	if remaining > 0 {
		s.idle.Arm(remaining, s.handleIdleFire)
		return
	}
	s.terminate("idle_timeout")
}

// handleUpstreamError degrades a dialogue failure: one secondary-provider
// substitution per call, otherwise a spoken apology. The call never stalls
// silently.
func (s *Session) handleUpstreamError(err error) {
	if s.terminated {
		return
	}
	s.logger.Warn("upstream dialogue error", "error", err)
	s.gate.ClearInFlight()

	if !s.swapped && s.cfg.Secondary != nil {
		s.swapped = true
		s.logger.Info("switching to secondary dialogue provider")
		go s.swapDialogue()
		return
	}

	s.speak(s.cfg.Snapshot.ApologyUtterance)
}

// swapDialogue builds and connects the secondary provider off-loop, then
// installs it on the loop.
func (s *Session) swapDialogue() {
	replacement, err := s.cfg.Secondary()
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = replacement.Connect(ctx)
		cancel()
	}

	s.post(func() {
		if s.terminated {
			if err == nil {
				replacement.Close()
			}
			return
		}
		if err != nil {
			s.logger.Error("secondary dialogue provider failed", "error", err)
			s.speak(s.cfg.Snapshot.ApologyUtterance)
			return
		}
		old := s.dialogue
		s.dialogue = replacement
		s.wireDialogue(replacement)
		go old.Close()
		s.logger.Info("secondary dialogue provider active")
	})
}

// speakGreeting plays the opening line, from the pre-warmed cache when the
// configured greeting matches.
func (s *Session) speakGreeting() {
	greeting := s.cfg.Snapshot.Greeting
	if greeting == "" {
		return
	}
	s.gate.HandleResponseText()
	if s.cfg.Greeting != nil {
		if cached := s.cfg.Greeting.Audio(greeting); cached != nil {
			s.pacer.Enqueue(cached)
			return
		}
	}
	s.speak(greeting)
}

// speak streams synthesized audio for text into the pacer. Runs the synthesis
// call off-loop; errors degrade per the failure policy instead of stalling.
func (s *Session) speak(text string) {
	if text == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		stream, err := s.cfg.Synth.Stream(ctx, text)
		if err != nil {
			s.logger.Error("synthesis failed", "error", err, "chars", len(text))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Read()
			if err != nil {
				s.logger.Warn("synthesis stream error", "error", err)
				return
			}
			if chunk == nil {
				return
			}
			s.pacer.Enqueue(chunk)
		}
	}()
}

// RequestResponse implements GateActions.
func (s *Session) RequestResponse() error {
	return s.dialogue.RequestResponse()
}

// SpeakFallback implements GateActions.
func (s *Session) SpeakFallback() {
	s.emit("fallback", "")
	s.speak(s.cfg.Snapshot.FallbackUtterance)
}

// terminate tears the call down. Idempotent on the loop; finalization's own
// CAS guard covers the race with out-of-loop triggers.
func (s *Session) terminate(reason string) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.state.EndedAt = time.Now()

	s.logger.Info("call terminating", "reason", reason)
	s.emit("ended", reason)

	s.idle.Cancel()
	s.maxDur.Cancel()
	s.gate.Shutdown()
	s.pacer.Close()
	s.conn.MarkClosed()
	go s.dialogue.Close()

	state, lead := s.state, s.leadRecord()
	if s.cfg.Finalizer != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			s.cfg.Finalizer.Finalize(ctx, state, lead, reason)
		}()
	}

	close(s.done)
}

func (s *Session) leadRecord() *LeadRecord {
	if s.extractor == nil {
		return &LeadRecord{}
	}
	return s.extractor.Lead()
}

func (s *Session) emit(kind, detail string) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(s.state.ID, kind, detail)
	}
}
