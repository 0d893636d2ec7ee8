package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Jam/internal/adapters/store"
	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/app/orch"
	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (r *recorder) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) ofType(t *testing.T, typ string) []string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, f := range r.frames {
		env, err := core.Decode(f)
		require.NoError(t, err)
		if env.Type == typ {
			out = append(out, string(env.Data))
		}
	}
	return out
}

func startRelay(t *testing.T, bus core.Bus) *orch.Orchestrator {
	t.Helper()
	reg := app.NewRegistry()
	o := orch.New(reg, app.NewRoomManager(reg), store.NewNoop(), orch.Settings{ProbePeriod: -1})
	o.Bus = bus

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return o
}

// onLoop runs fn on the relay's event loop and waits for it.
func onLoop(t *testing.T, o *orch.Orchestrator, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, o.Loop.Submit(func() {
		fn()
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop task did not run")
	}
}

func TestLocalBus_RelaysAcrossInstances(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	one := startRelay(t, bus)
	two := startRelay(t, bus)
	require.Eventually(t, func() bool { return bus.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	alice, bob := &recorder{}, &recorder{}
	onLoop(t, two, func() {
		two.Connect("B", bob, func() {})
		two.AnnounceJoin("B", "room1", "bob")
	})
	onLoop(t, one, func() {
		one.Connect("A", alice, func() {})
		one.AnnounceJoin("A", "room1", "alice")
	})
	require.Eventually(t, func() bool {
		return len(bob.ofType(t, core.EventNewUser)) == 2
	}, time.Second, 5*time.Millisecond)

	var note core.Note
	require.NoError(t, json.Unmarshal([]byte(`{"pitch":60}`), &note))
	onLoop(t, one, func() { one.RelayNote("A", core.EventNoteOn, note) })

	require.Eventually(t, func() bool {
		return len(bob.ofType(t, core.EventNoteOn)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"pitch":60,"username":"alice"}`, bob.ofType(t, core.EventNoteOn)[0])
	assert.Empty(t, alice.ofType(t, core.EventNoteOn), "own frames come back from the bus and are skipped")
}

func TestLocalBus_OtherRoomsNotDelivered(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	one := startRelay(t, bus)
	two := startRelay(t, bus)
	require.Eventually(t, func() bool { return bus.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	carol := &recorder{}
	onLoop(t, two, func() {
		two.Connect("C", carol, func() {})
		two.AnnounceJoin("C", "room2", "carol")
	})
	onLoop(t, one, func() {
		one.Connect("A", &recorder{}, func() {})
		one.AnnounceJoin("A", "room1", "alice")
	})

	assert.Never(t, func() bool {
		return len(carol.ofType(t, core.EventNewUser)) > 1
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLocalBus_Closed(t *testing.T) {
	bus := NewLocalBus()
	bus.Close()

	err := bus.Publish(context.Background(), core.BusMessage{Origin: "a", Room: domain.RoomID("r")})
	assert.ErrorIs(t, err, ErrBusClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Subscribe(ctx, func(core.BusMessage) {})
	assert.Zero(t, bus.subscribers())
}
