package signal

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
	"github.com/dkeye/Jam/internal/domain"
)

func (ctl *SignalWSController) handleGetRecordings(sid core.SessionID) func() {
	return func() { ctl.Orch.ListRecordings(sid) }
}

func (ctl *SignalWSController) handleSaveRecording(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) func() {
	var rec domain.Recording
	if !ctl.decodeRequest(sid, conn, core.EventSaveRecording, data, &rec) {
		return nil
	}
	return func() { ctl.Orch.SaveRecording(sid, rec) }
}

func (ctl *SignalWSController) handleRenameRecording(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) func() {
	var req core.RenameRequest
	if !ctl.decodeRequest(sid, conn, core.EventUpdateRecordingName, data, &req) {
		return nil
	}
	return func() { ctl.Orch.RenameRecording(sid, req) }
}

func (ctl *SignalWSController) handleDeleteRecording(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) func() {
	var req core.DeleteRequest
	if !ctl.decodeRequest(sid, conn, core.EventDeleteRecording, data, &req) {
		return nil
	}
	return func() { ctl.Orch.DeleteRecording(sid, req) }
}

// decodeRequest reports a malformed recording request back to its sender
// as the request's error event.
func (ctl *SignalWSController) decodeRequest(sid core.SessionID, conn *WsSignalConn, request string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", request).Msg("bad recording payload")
		ctl.sendJSON(conn, core.ErrorEvent(request), core.ErrorMessage{Message: "bad_payload"})
		return false
	}
	return true
}
