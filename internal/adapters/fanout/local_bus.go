package fanout

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Jam/internal/core"
)

var ErrBusClosed = errors.New("bus closed")

// LocalBus connects relays living in the same process. Like redis pub/sub,
// a publisher also receives its own messages.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[int]func(core.BusMessage)
	next   int
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]func(core.BusMessage))}
}

func (b *LocalBus) Publish(ctx context.Context, m core.BusMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	fns := make([]func(core.BusMessage), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(m)
	}
	return nil
}

// Subscribe blocks until ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, fn func(core.BusMessage)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]func(core.BusMessage))
}

func (b *LocalBus) subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
