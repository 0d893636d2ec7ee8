package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
	"github.com/rs/zerolog/log"
)

// Membership is where the directory reads and writes a connection's
// current room. The registry implements it.
type Membership interface {
	RoomOf(sid core.SessionID) (domain.RoomID, bool)
	SetRoom(sid core.SessionID, room domain.RoomID) bool
	ClearRoom(sid core.SessionID)
}

// RoomManager maps room ids to their members. A room exists only while it
// has at least one member.
type RoomManager struct {
	mu      sync.RWMutex
	members Membership
	rooms   map[domain.RoomID]map[core.SessionID]struct{}
}

func NewRoomManager(members Membership) *RoomManager {
	return &RoomManager{
		members: members,
		rooms:   make(map[domain.RoomID]map[core.SessionID]struct{}),
	}
}

// Join puts sid into room, leaving whatever room it was in before.
// prev is that earlier room; moved is false when sid had no room.
func (m *RoomManager) Join(sid core.SessionID, room domain.RoomID) (prev domain.RoomID, moved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, moved = m.members.RoomOf(sid)
	if moved {
		m.removeLocked(prev, sid)
	}
	set, ok := m.rooms[room]
	if !ok {
		set = make(map[core.SessionID]struct{})
		m.rooms[room] = set
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room created")
	}
	set[sid] = struct{}{}
	m.members.SetRoom(sid, room)
	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(room)).Int("members", len(set)).Msg("member added")
	return prev, moved
}

// Leave removes sid from its room and reports which room that was.
func (m *RoomManager) Leave(sid core.SessionID) (domain.RoomID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.members.RoomOf(sid)
	if !ok {
		return "", false
	}
	m.removeLocked(room, sid)
	m.members.ClearRoom(sid)
	return room, true
}

func (m *RoomManager) removeLocked(room domain.RoomID, sid core.SessionID) {
	set, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(set, sid)
	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(room)).Int("members", len(set)).Msg("member removed")
	if len(set) == 0 {
		delete(m.rooms, room)
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room removed")
	}
}

// MembersOf returns the members of room sorted by sid. Unknown rooms
// have no members.
func (m *RoomManager) MembersOf(room domain.RoomID) []core.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.rooms[room]
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for id, set := range m.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: len(set)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
