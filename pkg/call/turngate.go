package call

import (
	"log/slog"
	"time"
)

// Phase is the turn-taking state of a call.
type Phase int

const (
	// PhaseIdle means nothing is pending; the caller has the floor.
	PhaseIdle Phase = iota

	// PhaseDebounce means a response will be requested once the current
	// burst of transcripts settles.
	PhaseDebounce

	// PhaseInFlight means a response request is outstanding upstream.
	PhaseInFlight

	// PhaseSpeaking means synthesized audio is playing, or the trailing
	// barge-in suppression window after playback is still open.
	PhaseSpeaking
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebounce:
		return "debounce"
	case PhaseInFlight:
		return "in_flight"
	case PhaseSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// GateConfig holds the turn-taking timing constants.
type GateConfig struct {
	// Debounce is how long after the last transcript before requesting a
	// response, coalescing a burst into one request.
	Debounce time.Duration

	// BargeInHold is the trailing suppression window after playback ends,
	// keeping the bot's own tail out of the recognizer.
	BargeInHold time.Duration

	// NoInputDelay is the wait after a speech-stopped signal with no
	// transcript before speaking the fallback.
	NoInputDelay time.Duration

	// MinTranscriptGap blocks the fallback when a real transcript arrived
	// this recently.
	MinTranscriptGap time.Duration

	// FallbackCooldown is the minimum interval between fallback
	// utterances.
	FallbackCooldown time.Duration
}

// DefaultGateConfig returns the production timing constants.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Debounce:         time.Second,
		BargeInHold:      time.Second,
		NoInputDelay:     4 * time.Second,
		MinTranscriptGap: 3 * time.Second,
		FallbackCooldown: 12 * time.Second,
	}
}

// GateActions are the side effects the gate can trigger. The session
// implements them.
type GateActions interface {
	// RequestResponse issues exactly one response-generation request.
	RequestResponse() error

	// SpeakFallback speaks the fixed "didn't catch that" utterance.
	SpeakFallback()
}

// TurnGate arbitrates caller speech, transcript arrival and response
// generation for one call. Single-writer: every method must be called from
// the session's event loop, which is also where timer fires are delivered.
type TurnGate struct {
	cfg     GateConfig
	actions GateActions
	logger  *slog.Logger
	now     func() time.Time

	phase    Phase
	inFlight bool

	suppressUntil  time.Time
	lastTranscript time.Time
	lastFallback   time.Time

	debounce *Timer
	noInput  *Timer
	bargeIn  *Timer
}

// NewTurnGate creates a gate whose timer fires are delivered through post.
func NewTurnGate(cfg GateConfig, actions GateActions, post func(func()), logger *slog.Logger) *TurnGate {
	return &TurnGate{
		cfg:      cfg,
		actions:  actions,
		logger:   logger.With("component", "call.turngate"),
		now:      time.Now,
		phase:    PhaseIdle,
		debounce: NewTimer(post),
		noInput:  NewTimer(post),
		bargeIn:  NewTimer(post),
	}
}

// Phase returns the current phase.
func (g *TurnGate) Phase() Phase {
	return g.phase
}

// InFlight reports whether a response request is outstanding.
func (g *TurnGate) InFlight() bool {
	return g.inFlight
}

// SuppressInput reports whether inbound caller audio should be withheld from
// the dialogue collaborator: while the bot speaks and through the trailing
// barge-in window.
func (g *TurnGate) SuppressInput() bool {
	return g.phase == PhaseSpeaking || g.now().Before(g.suppressUntil)
}

// HandleTranscript processes a completed caller transcript: the no-input
// fallback is off the table, and the debounce window (re)starts unless a
// response is already outstanding.
func (g *TurnGate) HandleTranscript() {
	g.lastTranscript = g.now()
	g.noInput.Cancel()

	if g.inFlight {
		g.logger.Debug("transcript during in-flight response, not extending debounce")
		return
	}

	g.phase = PhaseDebounce
	g.debounce.Arm(g.cfg.Debounce, g.handleDebounceFire)
}

// handleDebounceFire requests exactly one response. A response that became
// in-flight since arming wins the race; the request is skipped, never queued.
func (g *TurnGate) handleDebounceFire() {
	if g.inFlight {
		g.logger.Info("debounce fired while response in flight, skipping request")
		return
	}

	g.inFlight = true
	g.phase = PhaseInFlight

	if err := g.actions.RequestResponse(); err != nil {
		g.logger.Error("response request failed", "error", err)
		g.inFlight = false
		g.phase = PhaseIdle
	}
}

// HandleResponseText marks the turn as speaking. The session forwards the
// text to synthesis; in-flight stays set until the upstream done ack.
func (g *TurnGate) HandleResponseText() {
	g.phase = PhaseSpeaking
}

// HandleResponseDone clears the in-flight flag on the upstream's own
// response-finished acknowledgment. Clearing only here keeps single-flight
// intact even when local events race.
func (g *TurnGate) HandleResponseDone() {
	g.inFlight = false
}

// HandlePlaybackFinished arms the trailing barge-in suppression window; the
// gate returns to idle when it elapses.
func (g *TurnGate) HandlePlaybackFinished() {
	if g.phase != PhaseSpeaking {
		return
	}
	g.suppressUntil = g.now().Add(g.cfg.BargeInHold)
	g.bargeIn.Arm(g.cfg.BargeInHold, func() {
		if g.phase == PhaseSpeaking {
			g.phase = PhaseIdle
		}
	})
}

// HandleSpeechStopped arms the no-input fallback: the caller stopped talking,
// and if no transcript materializes the bot prompts rather than stalling.
func (g *TurnGate) HandleSpeechStopped() {
	g.noInput.Arm(g.cfg.NoInputDelay, g.handleNoInputFire)
}

// handleNoInputFire speaks the fallback only when all three independent
// conditions hold: no recent transcript, nothing in flight, and the cooldown
// since the previous fallback has elapsed.
func (g *TurnGate) handleNoInputFire() {
	now := g.now()

	if !g.lastTranscript.IsZero() && now.Sub(g.lastTranscript) < g.cfg.MinTranscriptGap {
		g.logger.Debug("fallback blocked, transcript arrived recently")
		return
	}
	if g.inFlight {
		g.logger.Debug("fallback blocked, response in flight")
		return
	}
	if !g.lastFallback.IsZero() && now.Sub(g.lastFallback) < g.cfg.FallbackCooldown {
		g.logger.Debug("fallback blocked, cooldown active")
		return
	}

	g.lastFallback = now
	g.logger.Info("no input detected, speaking fallback")
	g.actions.SpeakFallback()
}

// ClearInFlight force-clears the in-flight flag after an upstream failure so
// the call does not stall waiting for a done ack that will never come.
func (g *TurnGate) ClearInFlight() {
	g.inFlight = false
	if g.phase == PhaseInFlight {
		g.phase = PhaseIdle
	}
}

// Shutdown cancels all pending timers. Called on any terminal event.
func (g *TurnGate) Shutdown() {
	g.debounce.Cancel()
	g.noInput.Cancel()
	g.bargeIn.Cancel()
}
