package eventloop

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrTimerClosed is returned when arming a released timer.
var ErrTimerClosed = errors.New("timer closed")

// Timer fires a callback on the loop goroutine at a fixed period.
//
// Start, Stop and Close must only be called on the loop goroutine. A tick that
// was already queued when Stop ran is discarded, and at most one tick is ever
// queued at a time, so a slow callback never builds a backlog.
type Timer struct {
	loop *Loop

	// Loop-confined.
	armed      bool
	closed     bool
	generation uint64
	stop       chan struct{}

	queued atomic.Bool
}

// NewTimer creates a disarmed timer bound to l.
func (l *Loop) NewTimer() *Timer {
	return &Timer{loop: l}
}

// Start arms the timer. The first tick fires one period from now. Arming an
// armed timer replaces its period and callback.
func (t *Timer) Start(period time.Duration, fn func()) error {
	if t.closed {
		return ErrTimerClosed
	}
	if period <= 0 {
		return fmt.Errorf("invalid timer period %s", period)
	}
	t.Stop()

	t.generation++
	t.armed = true
	t.stop = make(chan struct{})

	go t.run(period, t.generation, t.stop, fn)
	return nil
}

// Stop disarms the timer. It does nothing if the timer is not armed.
func (t *Timer) Stop() {
	if !t.armed {
		return
	}
	t.armed = false
	close(t.stop)
	t.stop = nil
}

// Close disarms and releases the timer. It is safe to call more than once,
// and on a timer that was never armed.
func (t *Timer) Close() {
	t.Stop()
	t.closed = true
}

// Armed reports whether ticks are currently scheduled.
func (t *Timer) Armed() bool {
	return t.armed
}

func (t *Timer) run(period time.Duration, generation uint64, stop <-chan struct{}, fn func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.queued.CompareAndSwap(false, true) {
				continue
			}
			if !t.loop.Post(func() { t.fire(generation, fn) }) {
				return
			}
		}
	}
}

func (t *Timer) fire(generation uint64, fn func()) {
	t.queued.Store(false)
	if !t.armed || t.generation != generation {
		return
	}
	fn()
}
