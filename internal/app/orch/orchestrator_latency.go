package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/metrics"
)

func (o *Orchestrator) runProbe(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := o.Loop.Submit(o.ProbeRound); err != nil {
				return
			}
		}
	}
}

// ProbeRound starts a new round and pings every connection, in a room or not.
func (o *Orchestrator) ProbeRound() {
	r := o.Prober.Start()
	frame, ok := o.encode(core.EventPing, core.PingMessage{Round: r.ID})
	if !ok {
		return
	}
	sent := 0
	for _, c := range o.Registry.All() {
		if o.sendTo(c.SID, "", frame) {
			sent++
		}
	}
	log.Debug().Str("module", "orch").Uint64("round", r.ID).Int("sent_to", sent).Msg("ping")
}

// HandlePong measures the round trip of sid and tells its room. A pong
// without a round id is measured against the newest round.
func (o *Orchestrator) HandlePong(sid core.SessionID, pong core.PongMessage) {
	c, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	var (
		d        time.Duration
		measured bool
	)
	if pong.Round != nil {
		d, measured = o.Prober.Measure(*pong.Round)
	} else {
		d, measured = o.Prober.MeasureLatest()
	}
	if !measured {
		return
	}
	metrics.Latency.Observe(d.Seconds())
	if !c.InRoom() {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Dur("latency", d).Msg("latency dropped, no room")
		return
	}
	frame, ok := o.encode(core.EventLatency, core.LatencyMessage{Username: c.Username, Latency: d.Milliseconds()})
	if !ok {
		return
	}
	o.broadcastRoom(c.Room, "", frame)
}
