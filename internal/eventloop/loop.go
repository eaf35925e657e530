// Package eventloop provides the single goroutine that owns the collector's
// profiler state, together with a timer whose callbacks run on it.
//
// Everything that touches loop-confined state is either run by the loop
// itself or posted to it. Post is safe from any goroutine and never blocks.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned when work is submitted to a loop that has exited.
	ErrClosed = errors.New("event loop closed")

	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("event loop already running")
)

// Loop is a multi-producer single-consumer task queue drained by Run.
type Loop struct {
	logger zerolog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
}

// New creates a loop. Call Run to start draining it.
func New(logger zerolog.Logger) *Loop {
	return &Loop{
		logger: logger.With().Str("component", "event_loop").Logger(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn for execution on the loop goroutine and returns immediately.
// It reports false if the loop has already exited.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop goroutine and waits for it to return.
// It must not be called from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop may have run fn right before exiting.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks not yet picked up.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run drains the queue until ctx is cancelled. Tasks still queued at that
// point are dropped; later Posts fail.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)

	l.logger.Debug().Msg("Event loop started")

	for {
		for {
			batch := l.take()
			if len(batch) == 0 {
				break
			}
			for i, fn := range batch {
				if ctx.Err() != nil {
					l.shutdown(len(batch) - i)
					return ctx.Err()
				}
				fn()
				batch[i] = nil
			}
		}

		select {
		case <-ctx.Done():
			l.shutdown(0)
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// take swaps out the current queue so finished tasks are not retained.
func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) shutdown(unprocessed int) {
	l.mu.Lock()
	l.closed = true
	dropped := unprocessed + len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	l.logger.Debug().Int("dropped_tasks", dropped).Msg("Event loop stopped")
}
