package core

import (
	"github.com/goccy/go-json"
)

// Note is an instrument event. The relay never validates it: every field
// the client sent is forwarded, Username is stamped by the server.
type Note struct {
	Username string
	Fields   map[string]json.RawMessage
}

func (n *Note) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		// Not an object: keep the raw value so it is still relayed.
		if !json.Valid(b) {
			return err
		}
		fields = map[string]json.RawMessage{"value": append(json.RawMessage(nil), b...)}
	}
	n.Fields = fields
	return nil
}

func (n Note) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Fields)+1)
	for k, v := range n.Fields {
		out[k] = v
	}
	out["username"] = n.Username
	return json.Marshal(out)
}

// Pitch returns the numeric pitch if the client sent one.
func (n Note) Pitch() (float64, bool) { return n.number("pitch") }

func (n Note) Velocity() (float64, bool) { return n.number("velocity") }

func (n Note) Timestamp() (float64, bool) { return n.number("timestamp") }

func (n Note) number(key string) (float64, bool) {
	raw, ok := n.Fields[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
