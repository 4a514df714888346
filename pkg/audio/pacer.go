// Package audio adapts bursty synthesized audio to the fixed cadence the
// telephony transport expects.
//
// Synthesis providers deliver audio in arbitrarily sized chunks as fast as
// they can produce it; the transport wants exactly one fixed-size frame every
// frame interval. The Pacer sits between the two: producers enqueue bytes,
// and a wall-clock tick pops one frame at a time off the front of the queue.
package audio

import (
	"log/slog"
	"sync"
	"time"
)

// Output receives paced frames. The telephony connection implements this.
type Output interface {
	// WriteFrame sends one frame on the bound stream.
	WriteFrame(streamID string, frame []byte) error
}

// Pacer buffers enqueued audio and emits fixed-size frames at a fixed
// cadence. The tick pauses while the queue is empty and restarts on the next
// Enqueue, so an idle call does not stream silence forever.
type Pacer struct {
	frameBytes int
	interval   time.Duration
	silence    byte
	out        Output
	logger     *slog.Logger

	// onDrain fires (outside the lock) when a tick finds the queue empty
	// and pauses. The session uses it to detect end of playback.
	onDrain func()

	mu       sync.Mutex
	buf      []byte
	streamID string
	bound    bool
	running  bool
	closed   bool
}

// PacerOption configures a Pacer.
type PacerOption func(*Pacer)

// WithFrameSize overrides the frame size in bytes.
func WithFrameSize(n int) PacerOption {
	return func(p *Pacer) { p.frameBytes = n }
}

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) PacerOption {
	return func(p *Pacer) { p.interval = d }
}

// WithSilence overrides the padding byte.
func WithSilence(b byte) PacerOption {
	return func(p *Pacer) { p.silence = b }
}

// WithDrainFunc sets the callback fired when the queue drains and the tick
// pauses.
func WithDrainFunc(fn func()) PacerOption {
	return func(p *Pacer) { p.onDrain = fn }
}

// WithPacerLogger sets the structured logger.
func WithPacerLogger(logger *slog.Logger) PacerOption {
	return func(p *Pacer) { p.logger = logger }
}

// NewPacer creates a pacer writing to out. Defaults match the telephony
// transport: 160-byte frames every 20 ms, mu-law silence padding.
func NewPacer(out Output, opts ...PacerOption) *Pacer {
	p := &Pacer{
		frameBytes: 160,
		interval:   20 * time.Millisecond,
		silence:    0xFF,
		out:        out,
		logger:     slog.Default().With("component", "audio.pacer"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bind associates the pacer with an output stream. Frames are dropped until
// a stream is bound.
func (p *Pacer) Bind(streamID string) {
	p.mu.Lock()
	p.streamID = streamID
	p.bound = true
	p.mu.Unlock()
}

// Enqueue appends raw audio to the queue and starts the tick if it is
// paused. Restarting is idempotent: a running tick is left alone.
func (p *Pacer) Enqueue(audio []byte) {
	if len(audio) == 0 {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.buf = append(p.buf, audio...)
	start := !p.running
	if start {
		p.running = true
	}
	p.mu.Unlock()

	if start {
		go p.run()
	}
}

// Close stops the tick permanently and discards buffered audio.
func (p *Pacer) Close() {
	p.mu.Lock()
	p.closed = true
	p.buf = nil
	p.mu.Unlock()
}

// Buffered returns the number of queued bytes not yet framed.
func (p *Pacer) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// run drives the tick until the queue drains or the pacer closes.
func (p *Pacer) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for range ticker.C {
		if !p.tick() {
			return
		}
	}
}

// tick emits one frame. It returns false when the tick should stop, either
// because the queue drained (paused until the next Enqueue) or the pacer
// closed.
func (p *Pacer) tick() bool {
	p.mu.Lock()
	if p.closed {
		p.running = false
		p.mu.Unlock()
		return false
	}
	if len(p.buf) == 0 {
		// Pause rather than emit silence indefinitely. The next
		// Enqueue restarts the tick.
		p.running = false
		drained := p.onDrain
		p.mu.Unlock()
		if drained != nil {
			drained()
		}
		return false
	}

	frame := make([]byte, p.frameBytes)
	n := copy(frame, p.buf)
	if n < p.frameBytes {
		for i := n; i < p.frameBytes; i++ {
			frame[i] = p.silence
		}
		p.buf = p.buf[:0]
	} else {
		p.buf = p.buf[n:]
	}
	bound := p.bound
	streamID := p.streamID
	p.mu.Unlock()

	if !bound {
		p.logger.Warn("dropping frame, no stream bound")
		return true
	}
	if err := p.out.WriteFrame(streamID, frame); err != nil {
		// Transport unavailable is not the producer's problem.
		p.logger.Warn("dropping frame, transport write failed", "error", err)
	}
	return true
}
