package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/metrics"
)

// RelayNote forwards a note_on/note_off to everyone else in the sender's
// room. A sender without a room is ignored without telling it.
func (o *Orchestrator) RelayNote(sid core.SessionID, kind string, note core.Note) {
	c, ok := o.Registry.Get(sid)
	if !ok || !c.InRoom() {
		metrics.Relayed.WithLabelValues(kind, "no_room").Inc()
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", kind).Msg("note dropped, no room")
		return
	}
	note.Username = c.Username
	frame, ok := o.encode(kind, note)
	if !ok {
		metrics.Relayed.WithLabelValues(kind, "encode_error").Inc()
		return
	}
	res := o.broadcastRoom(c.Room, sid, frame)
	metrics.Relayed.WithLabelValues(kind, "ok").Inc()
	if pitch, ok := note.Pitch(); ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", kind).Float64("pitch", pitch).Int("sent_to", res.SendTo).Msg("note relayed")
	}
}
