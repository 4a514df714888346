package call

import "time"

// Timer is a cancellable one-shot timer with cancel-on-supersede semantics:
// Arm replaces any pending fire, and a fire that was superseded or cancelled
// before running is discarded. The callback is delivered through post, so it
// runs on the session's event loop like every other state mutation.
//
// Arm, Cancel and Armed must themselves be called from the event loop.
type Timer struct {
	post  func(func())
	gen   uint64
	armed bool
	timer *time.Timer
}

// NewTimer creates a timer that delivers fires through post.
func NewTimer(post func(func())) *Timer {
	return &Timer{post: post}
}

// Arm schedules fn to run after d, superseding any pending fire.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.gen++
	gen := t.gen
	t.armed = true

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, func() {
		t.post(func() {
			if t.gen != gen || !t.armed {
				return
			}
			t.armed = false
			fn()
		})
	})
}

// Cancel discards any pending fire.
func (t *Timer) Cancel() {
	t.gen++
	t.armed = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Armed reports whether a fire is pending.
func (t *Timer) Armed() bool {
	return t.armed
}
