package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Jam/internal/core"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()

	c := r.Register("s1", nopConn{}, nil)
	assert.Equal(t, core.SessionID("s1"), c.SID)
	assert.Empty(t, c.Username)
	assert.False(t, c.InRoom())

	require.True(t, r.SetIdentity("s1", "alice"))
	require.True(t, r.SetRoom("s1", "room1"))

	room, ok := r.RoomOf("s1")
	require.True(t, ok)
	assert.Equal(t, "room1", string(room))

	got, ok := r.Clear("s1")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "room1", string(got.Room))

	_, ok = r.Get("s1")
	assert.False(t, ok)
	_, ok = r.Clear("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_AcceptsAnyUsername(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", nopConn{}, nil)
	r.Register("s2", nopConn{}, nil)

	assert.True(t, r.SetIdentity("s1", "same"))
	assert.True(t, r.SetIdentity("s2", "same"))
	assert.True(t, r.SetIdentity("s2", ""))

	c, _ := r.Get("s2")
	assert.Empty(t, c.Username)
	assert.False(t, r.SetIdentity("missing", "x"))
}

func TestRegistry_JoinedSurvivesEmptyNameAndRoomClear(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", nopConn{}, nil)

	c, _ := r.Get("s1")
	assert.False(t, c.Joined)

	require.True(t, r.SetIdentity("s1", ""))
	r.SetRoom("s1", "room1")
	r.ClearRoom("s1")

	c, _ = r.Get("s1")
	assert.True(t, c.Joined)
	assert.Empty(t, c.Username)
	assert.False(t, c.InRoom())
}

func TestRegistry_RoomOfUnknownOrRoomless(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", nopConn{}, nil)

	_, ok := r.RoomOf("s1")
	assert.False(t, ok)
	_, ok = r.RoomOf("nope")
	assert.False(t, ok)

	r.SetRoom("s1", "room1")
	r.ClearRoom("s1")
	_, ok = r.RoomOf("s1")
	assert.False(t, ok)
}

func TestRegistry_Cancel(t *testing.T) {
	r := NewRegistry()
	called := 0
	r.Register("s1", nopConn{}, func() { called++ })

	assert.True(t, r.Cancel("s1"))
	assert.Equal(t, 1, called)
	assert.False(t, r.Cancel("missing"))
}

func TestRegistry_ReRegisterKeepsIdentity(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", nopConn{}, nil)
	r.SetIdentity("s1", "alice")

	c := r.Register("s1", nopConn{}, nil)
	assert.Equal(t, "alice", c.Username)
	assert.Len(t, r.All(), 1)
}
