package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
)

// AnnounceJoin names the connection and moves it into room. A connection
// already in another room leaves it first and that room hears about it.
// Every member of room, the joiner included, gets one newUser.
func (o *Orchestrator) AnnounceJoin(sid core.SessionID, room domain.RoomID, username string) {
	before, ok := o.Registry.Get(sid)
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("join from unknown session")
		return
	}

	o.Registry.SetIdentity(sid, username)
	prev, moved := o.Rooms.Join(sid, room)
	if moved && prev != room {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left previous room")
		o.broadcastDeparture(prev, before.Username)
	}
	o.updateGauges()

	frame, ok := o.encode(core.EventNewUser, username)
	if !ok {
		return
	}
	o.broadcastRoom(room, "", frame)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Str("username", username).Msg("joined")

	if o.settings.RosterOnJoin {
		o.sendRoster(sid, room)
	}
}

// sendRoster tells the joiner who was already in the room.
func (o *Orchestrator) sendRoster(sid core.SessionID, room domain.RoomID) {
	for _, other := range o.Rooms.MembersOf(room) {
		if other == sid {
			continue
		}
		c, ok := o.Registry.Get(other)
		if !ok {
			continue
		}
		if frame, ok := o.encode(core.EventNewUser, c.Username); ok {
			o.sendTo(sid, room, frame)
		}
	}
}

// AnnounceDeparture forgets a disconnected connection. The room is read
// before membership is dropped so the remaining members can be told.
func (o *Orchestrator) AnnounceDeparture(sid core.SessionID) {
	room, inRoom := o.Rooms.Leave(sid)
	c, ok := o.Registry.Clear(sid)
	o.updateGauges()
	if !ok {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("disconnected")
	if inRoom {
		o.broadcastDeparture(room, c.Username)
	}
}

// Leave takes the connection out of its room but keeps it connected.
func (o *Orchestrator) Leave(sid core.SessionID) {
	c, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	room, inRoom := o.Rooms.Leave(sid)
	o.updateGauges()
	if !inRoom {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("left room")
	o.broadcastDeparture(room, c.Username)
}

func (o *Orchestrator) broadcastDeparture(room domain.RoomID, username string) {
	frame, ok := o.encode(core.EventUserDisconnected, username)
	if !ok {
		return
	}
	o.broadcastRoom(room, "", frame)
}
