package app

import (
	"context"
	"sync"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connection is a snapshot of one live connection.
type Connection struct {
	SID      core.SessionID
	Username string
	// Joined is set by the first joinRoom and never cleared. Username may
	// legitimately stay empty.
	Joined bool
	Room   domain.RoomID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// InRoom reports whether the connection currently belongs to a room.
func (c Connection) InRoom() bool { return c.Room != "" }

type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*Connection),
	}
}

// Register records a new connection. Registering an existing sid replaces
// its transport but keeps identity and room.
func (r *Registry) Register(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[sid]
	if !ok {
		c = &Connection{SID: sid}
		r.sessions[sid] = c
	}
	c.Signal = sig
	c.Cancel = cancel
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return *c
}

func (r *Registry) SetIdentity(sid core.SessionID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[sid]
	if !ok {
		return false
	}
	c.Username = username
	c.Joined = true
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", username).Msg("updated username")
	return true
}

func (r *Registry) Get(sid core.SessionID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.sessions[sid]; ok {
		return *c, true
	}
	return Connection{}, false
}

// Clear forgets the connection and returns its last state.
func (r *Registry) Clear(sid core.SessionID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[sid]
	if !ok {
		return Connection{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("cleared connection")
	return *c, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[sid]
	if !ok || c.Room == "" {
		return "", false
	}
	return c.Room, true
}

func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[sid]
	if !ok {
		return false
	}
	c.Room = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[sid]; ok {
		c.Room = ""
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
}

// All returns every registered connection, in no particular order.
func (r *Registry) All() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.sessions))
	for _, c := range r.sessions {
		out = append(out, *c)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel tears down the transport of sid. The disconnect path does the rest.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	c, ok := r.sessions[sid]
	var cancel context.CancelFunc
	if ok {
		cancel = c.Cancel
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
