package signal

import (
	"github.com/goccy/go-json"

	"github.com/dkeye/Jam/internal/core"
)

func (ctl *SignalWSController) handlePong(sid core.SessionID, data json.RawMessage) func() {
	var p core.PongMessage
	if len(data) > 0 {
		// a pong we cannot read is still a pong
		_ = json.Unmarshal(data, &p)
	}
	return func() { ctl.Orch.HandlePong(sid, p) }
}
