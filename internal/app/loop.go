package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

var ErrLoopStopped = errors.New("event loop stopped")

// EventLoop runs submitted tasks one at a time on a single goroutine.
// Every connection event and probe tick goes through it, so relay state
// is only ever touched by one task at once.
type EventLoop struct {
	tasks chan func()
	done  chan struct{}
}

func NewEventLoop(queue int) *EventLoop {
	if queue <= 0 {
		queue = 1024
	}
	return &EventLoop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run drains tasks until ctx is cancelled. Tasks still queued at that point
// are discarded.
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.done)
	log.Info().Str("module", "app.loop").Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.loop").Msg("event loop stopped")
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *EventLoop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.loop").Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}

// Submit queues fn, blocking while the queue is full.
func (l *EventLoop) Submit(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Done is closed once Run has returned.
func (l *EventLoop) Done() <-chan struct{} { return l.done }
