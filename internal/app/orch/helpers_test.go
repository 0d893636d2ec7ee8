package orch

import (
	"errors"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Jam/internal/adapters/store"
	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/core"
)

type fakeConn struct {
	mu        sync.Mutex
	frames    []core.Frame
	full      bool
	cancelled int
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("full")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
}

func (f *fakeConn) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *fakeConn) envelopes(t *testing.T) []core.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		env, err := core.Decode(fr)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

// ofType returns the data of every received event of type typ.
func (f *fakeConn) ofType(t *testing.T, typ string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, env := range f.envelopes(t) {
		if env.Type == typ {
			out = append(out, env.Data)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func newTestOrch(s Settings) *Orchestrator {
	return newTestOrchWithStore(store.NewMemory(), s)
}

func newTestOrchWithStore(st core.RecordingStore, s Settings) *Orchestrator {
	reg := app.NewRegistry()
	rooms := app.NewRoomManager(reg)
	if s.ProbePeriod == 0 {
		s.ProbePeriod = -1
	}
	return New(reg, rooms, st, s)
}

func connect(o *Orchestrator, sid core.SessionID) *fakeConn {
	c := &fakeConn{}
	o.Connect(sid, c, c.cancel)
	return c
}

func usernames(t *testing.T, data []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(data))
	for _, d := range data {
		var s string
		require.NoError(t, json.Unmarshal(d, &s))
		out = append(out, s)
	}
	return out
}
