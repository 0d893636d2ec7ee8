package signal

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/core"
)

// handleNote passes the client's fields through untouched; only frames
// that are not JSON at all are refused earlier, in Decode.
func (ctl *SignalWSController) handleNote(sid core.SessionID, kind string, data json.RawMessage) func() {
	var note core.Note
	if len(data) > 0 {
		if err := json.Unmarshal(data, &note); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad note payload")
			return nil
		}
	}
	return func() { ctl.Orch.RelayNote(sid, kind, note) }
}
