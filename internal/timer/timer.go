// Package timer provides the one-shot timers backing alarm grace intervals.
//
// A Timer runs its callback once after the configured duration. Stop is
// idempotent and is a no-op on a timer that already fired, so callers can
// cancel unconditionally. Callbacks run on a timer goroutine; callers that
// need serialized handling forward from the callback onto their own event
// channel.
package timer

import (
	"sync"
	"time"
)

// Timer is a single-shot timer with an idempotent Stop.
type Timer struct {
	// mu guards timer and running.
	mu sync.Mutex
	// timer is the underlying runtime timer.
	timer *time.Timer
	// running reports whether the callback is still pending.
	running bool
}

// Start schedules callback to run once after duration.
func Start(duration time.Duration, callback func()) *Timer {
	t := &Timer{
		running: true,
	}

	t.timer = time.AfterFunc(duration, func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()

		callback()
	})

	return t
}

// Stop cancels the pending callback. Stopping a nil, already-stopped or
// already-fired timer is a no-op.
func (t *Timer) Stop() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}

	t.running = false
}

// Running reports whether the timer is still pending. A callback that ran
// to completion implies Running returns false.
func (t *Timer) Running() bool {
	if t == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}
