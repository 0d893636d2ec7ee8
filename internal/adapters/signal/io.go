package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
)

const (
	writeWait       = 5 * time.Second
	defaultPongWait = 60 * time.Second
)

// writePump is the only writer of text frames and pings. It owns the
// socket and closes it on the way out.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ping := time.NewTicker(ctl.pongWait * 9 / 10)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			c.goodbye(websocket.CloseGoingAway)
			return
		case <-c.done:
			c.goodbye(websocket.CloseNormalClosure)
			return
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write")
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (c *WsSignalConn) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

func (c *WsSignalConn) goodbye(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readPump feeds frames to handleSignal until the peer goes away or stops
// answering pings within pongWait.
func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		if err := ctl.Orch.Loop.Submit(func() { ctl.Orch.AnnounceDeparture(sid) }); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("departure not announced")
		}
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
		c.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait)) }
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = extend()
		if !ctl.handleSignal(sid, c, data) {
			return
		}
	}
}

// handleSignal decodes one frame on the reader goroutine and queues the
// matching relay call on the event loop. It returns false once the loop
// is gone.
func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) bool {
	env, err := core.Decode(data)
	if err != nil || env.Type == "" {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return true
	}

	var task func()
	switch env.Type {
	case core.EventJoinRoom:
		task = ctl.handleJoin(sid, c, env.Data)
	case core.EventLeaveRoom:
		task = ctl.handleLeave(sid)
	case core.EventNoteOn, core.EventNoteOff:
		task = ctl.handleNote(sid, env.Type, env.Data)
	case core.EventPong:
		task = ctl.handlePong(sid, env.Data)
	case core.EventGetRecordings:
		task = ctl.handleGetRecordings(sid)
	case core.EventSaveRecording:
		task = ctl.handleSaveRecording(sid, c, env.Data)
	case core.EventUpdateRecordingName:
		task = ctl.handleRenameRecording(sid, c, env.Data)
	case core.EventDeleteRecording:
		task = ctl.handleDeleteRecording(sid, c, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "unknown_type")
	}
	if task == nil {
		return true
	}
	if err := ctl.Orch.Loop.Submit(task); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("event loop gone")
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, typ string, v any) {
	b, err := core.Encode(typ, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, msg string) {
	ctl.sendJSON(c, core.EventError, map[string]string{"error": msg})
}
