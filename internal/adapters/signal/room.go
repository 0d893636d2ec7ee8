package signal

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data json.RawMessage,
) func() {
	var p core.JoinRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return nil
	}
	if p.RoomID == "" {
		ctl.sendError(conn, "room_required")
		return nil
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.sendError(conn, "rate_limited")
		return nil
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("name", p.Username).Msg("join")
	return func() { ctl.Orch.AnnounceJoin(sid, domain.RoomID(p.RoomID), p.Username) }
}

// handleLeave leaves the current room, the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID) func() {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	return func() { ctl.Orch.Leave(sid) }
}
