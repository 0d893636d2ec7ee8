package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
)

// publish queues a room frame for the other instances. It never blocks the
// loop: when the outbox is full the frame stays local.
func (o *Orchestrator) publish(m core.BusMessage) {
	if o.Bus == nil {
		return
	}
	select {
	case o.outbox <- m:
	default:
		log.Warn().Str("module", "orch").Str("room", string(m.Room)).Msg("bus outbox full, frame not fanned out")
	}
}

// runPublisher drains the outbox in order.
func (o *Orchestrator) runPublisher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-o.outbox:
			pctx, cancel := context.WithTimeout(ctx, time.Second)
			if err := o.Bus.Publish(pctx, m); err != nil {
				log.Error().Err(err).Str("module", "orch").Str("room", string(m.Room)).Msg("bus publish")
			}
			cancel()
		}
	}
}

// onBusMessage delivers a frame from another instance to local members.
func (o *Orchestrator) onBusMessage(m core.BusMessage) {
	if m.Origin == o.InstanceID {
		return
	}
	if err := o.Loop.Submit(func() { o.deliverLocal(m.Room, m.Exclude, m.Frame) }); err != nil {
		log.Debug().Err(err).Str("module", "orch").Msg("bus message dropped")
	}
}
