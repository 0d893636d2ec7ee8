package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
	"github.com/dkeye/Jam/internal/metrics"
)

var (
	ErrNotIdentified = errors.New("not identified")
	ErrBusy          = errors.New("server busy")
)

// runPersistence runs store calls on a bounded pool, off the event loop.
func (o *Orchestrator) runPersistence(ctx context.Context) {
	p := pool.New().WithMaxGoroutines(o.settings.MaxInflight)
	defer p.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-o.persistQ:
			p.Go(fn)
		}
	}
}

// ListRecordings replies with the recordings of the sender.
func (o *Orchestrator) ListRecordings(sid core.SessionID) {
	o.persist(sid, "list", core.EventGetRecordings, core.EventRecordingsList,
		func(ctx context.Context, username string) (any, error) {
			recs, err := o.Recordings.List(ctx, username)
			if recs == nil {
				recs = []domain.Recording{}
			}
			return recs, err
		})
}

// SaveRecording stores rec under the sender's name, whatever username the
// client put in it.
func (o *Orchestrator) SaveRecording(sid core.SessionID, rec domain.Recording) {
	o.persist(sid, "save", core.EventSaveRecording, core.EventRecordingSaved,
		func(ctx context.Context, username string) (any, error) {
			rec.Username = username
			return core.RecordingAck{RecordingTime: rec.RecordingTime}, o.Recordings.Save(ctx, rec)
		})
}

func (o *Orchestrator) RenameRecording(sid core.SessionID, req core.RenameRequest) {
	o.persist(sid, "rename", core.EventUpdateRecordingName, core.EventRecordingUpdated,
		func(ctx context.Context, username string) (any, error) {
			return core.RecordingAck{RecordingTime: req.RecordingTime}, o.Recordings.Rename(ctx, username, req.RecordingTime, req.NewName)
		})
}

func (o *Orchestrator) DeleteRecording(sid core.SessionID, req core.DeleteRequest) {
	o.persist(sid, "delete", core.EventDeleteRecording, core.EventRecordingDeleted,
		func(ctx context.Context, username string) (any, error) {
			return core.RecordingAck{RecordingTime: req.RecordingTime}, o.Recordings.Delete(ctx, username, req.RecordingTime)
		})
}

type storeCall func(ctx context.Context, username string) (any, error)

// persist queues call for the sender. Only connections that have joined
// once may use the store; an empty username is a valid owner. The reply
// goes back through the event loop and only to the sender, if it is still
// connected by then.
func (o *Orchestrator) persist(sid core.SessionID, op, request, okEvent string, call storeCall) {
	c, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	if !c.Joined {
		o.replyError(sid, request, ErrNotIdentified)
		return
	}
	username := c.Username
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.settings.StoreTimeout)
		defer cancel()
		res, err := call(ctx, username)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.Persistence.WithLabelValues(op, outcome).Inc()
		if serr := o.Loop.Submit(func() { o.completeStore(sid, op, request, okEvent, res, err) }); serr != nil {
			log.Debug().Err(serr).Str("module", "orch").Str("sid", string(sid)).Str("op", op).Msg("store result dropped")
		}
	}
	select {
	case o.persistQ <- task:
	default:
		o.replyError(sid, request, ErrBusy)
	}
}

func (o *Orchestrator) completeStore(sid core.SessionID, op, request, okEvent string, res any, err error) {
	if _, ok := o.Registry.Get(sid); !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("op", op).Msg("requester gone, store result dropped")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("op", op).Msg("store call failed")
		o.replyError(sid, request, err)
		return
	}
	if frame, ok := o.encode(okEvent, res); ok {
		o.sendTo(sid, "", frame)
	}
}

func (o *Orchestrator) replyError(sid core.SessionID, request string, err error) {
	if frame, ok := o.encode(core.ErrorEvent(request), core.ErrorMessage{Message: err.Error()}); ok {
		o.sendTo(sid, "", frame)
	}
}
