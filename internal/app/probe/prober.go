// Package probe keeps latency probe rounds.
//
// Every round gets its own id. Clients echo the id back in their pong, so a
// late pong is measured against the round it answers instead of whichever
// round happens to be newest.
package probe

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPeriod is how often a round starts.
const DefaultPeriod = 2 * time.Second

// DefaultKeep is how many recent rounds stay measurable.
const DefaultKeep = 4

type Round struct {
	ID        uint64
	StartedAt time.Time
}

type Prober struct {
	mu     sync.Mutex
	seq    uint64
	rounds map[uint64]time.Time
	keep   int
	now    func() time.Time
}

type Option func(*Prober)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) { p.now = now }
}

// WithKeep sets how many rounds are retained.
func WithKeep(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.keep = n
		}
	}
}

func New(opts ...Option) *Prober {
	p := &Prober{
		rounds: make(map[uint64]time.Time),
		keep:   DefaultKeep,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start opens a new round and expires the ones that fell out of the window.
func (p *Prober) Start() Round {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	r := Round{ID: p.seq, StartedAt: p.now()}
	p.rounds[r.ID] = r.StartedAt
	if p.seq > uint64(p.keep) {
		delete(p.rounds, p.seq-uint64(p.keep))
	}
	return r
}

// Measure returns the round trip for a pong answering round id.
// ok is false for rounds that never existed or have expired.
func (p *Prober) Measure(id uint64) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.rounds[id]
	if !ok {
		log.Debug().Str("module", "probe").Uint64("round", id).Msg("pong for unknown round")
		return 0, false
	}
	return p.now().Sub(start), true
}

// MeasureLatest measures against the newest round. Bare pongs without a
// round id land here; a pong that arrives after the next round started is
// measured too short.
func (p *Prober) MeasureLatest() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.rounds[p.seq]
	if !ok {
		return 0, false
	}
	return p.now().Sub(start), true
}

// Current returns the newest round, if any has started.
func (p *Prober) Current() (Round, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.rounds[p.seq]
	if !ok {
		return Round{}, false
	}
	return Round{ID: p.seq, StartedAt: start}, true
}
