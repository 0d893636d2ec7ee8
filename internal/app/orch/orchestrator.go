package orch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/app/probe"
	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
	"github.com/dkeye/Jam/internal/metrics"
)

// Settings tunes an Orchestrator. Zero values pick the defaults.
type Settings struct {
	RosterOnJoin bool
	ProbePeriod  time.Duration // negative disables the probe ticker
	StoreTimeout time.Duration
	MaxInflight  int
	QueueSize    int
}

// Orchestrator is the event relay. Its relay methods expect to run on
// Loop; Run starts the loop along with the probe ticker, the persistence
// workers and the fan-out bus.
type Orchestrator struct {
	Registry   *app.Registry
	Rooms      *app.RoomManager
	Policy     app.Policy
	Prober     *probe.Prober
	Recordings core.RecordingStore
	Bus        core.Bus // nil for a single process
	Loop       *app.EventLoop

	InstanceID string
	settings   Settings

	persistQ chan func()
	outbox   chan core.BusMessage
}

func New(reg *app.Registry, rooms *app.RoomManager, store core.RecordingStore, s Settings) *Orchestrator {
	if s.ProbePeriod == 0 {
		s.ProbePeriod = probe.DefaultPeriod
	}
	if s.StoreTimeout <= 0 {
		s.StoreTimeout = 5 * time.Second
	}
	if s.MaxInflight <= 0 {
		s.MaxInflight = 8
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 256
	}
	return &Orchestrator{
		Registry:   reg,
		Rooms:      rooms,
		Policy:     app.SimplePolicy{},
		Prober:     probe.New(),
		Recordings: store,
		Loop:       app.NewEventLoop(s.QueueSize * 4),
		InstanceID: uuid.NewString(),
		settings:   s,
		persistQ:   make(chan func(), s.QueueSize),
		outbox:     make(chan core.BusMessage, s.QueueSize),
	}
}

// Run blocks until ctx is done and every worker has stopped.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg conc.WaitGroup
	wg.Go(func() { o.Loop.Run(ctx) })
	wg.Go(func() { o.runPersistence(ctx) })
	if o.settings.ProbePeriod > 0 {
		wg.Go(func() { o.runProbe(ctx, o.settings.ProbePeriod) })
	}
	if o.Bus != nil {
		wg.Go(func() { o.runPublisher(ctx) })
		wg.Go(func() { o.Bus.Subscribe(ctx, o.onBusMessage) })
	}
	log.Info().Str("module", "orch").Str("instance", o.InstanceID).Msg("orchestrator running")
	wg.Wait()
	log.Info().Str("module", "orch").Msg("orchestrator stopped")
}

// Connect registers a freshly accepted connection.
func (o *Orchestrator) Connect(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) app.Connection {
	c := o.Registry.Register(sid, sig, cancel)
	metrics.Connections.Set(float64(o.Registry.Count()))
	return c
}

// sendTo delivers one frame to one connection.
func (o *Orchestrator) sendTo(sid core.SessionID, room domain.RoomID, frame core.Frame) bool {
	c, ok := o.Registry.Get(sid)
	if !ok || c.Signal == nil {
		return false
	}
	if err := c.Signal.TrySend(frame); err != nil {
		o.onDropped(room, sid, err)
		return false
	}
	return true
}

// broadcastRoom sends frame to every local member of room except exclude
// and hands it to the bus for the other instances.
func (o *Orchestrator) broadcastRoom(room domain.RoomID, exclude core.SessionID, frame core.Frame) core.PublishResult {
	res := o.deliverLocal(room, exclude, frame)
	o.publish(core.BusMessage{Origin: o.InstanceID, Room: room, Exclude: exclude, Frame: frame})
	return res
}

func (o *Orchestrator) deliverLocal(room domain.RoomID, exclude core.SessionID, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, sid := range o.Rooms.MembersOf(room) {
		if sid == exclude {
			continue
		}
		if !o.sendTo(sid, room, frame) {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "orch").Str("room", string(room)).Str("from", string(exclude)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (o *Orchestrator) onDropped(room domain.RoomID, sid core.SessionID, err error) {
	action := app.NoAction
	if o.Policy != nil {
		action = o.Policy.OnBackPressure(room, sid)
	}
	metrics.Dropped.WithLabelValues(action.String()).Inc()
	log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Stringer("action", action).Msg("send failed")
	switch action {
	case app.KickMember:
		o.Registry.Cancel(sid)
	case app.MarkSlow, app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) encode(typ string, data any) (core.Frame, bool) {
	frame, err := core.Encode(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", typ).Msg("encode frame")
		return nil, false
	}
	return frame, true
}

func (o *Orchestrator) updateGauges() {
	metrics.Connections.Set(float64(o.Registry.Count()))
	metrics.Rooms.Set(float64(o.Rooms.Count()))
}
