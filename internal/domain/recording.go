package domain

import (
	"github.com/goccy/go-json"
)

// Recording is keyed by (Username, RecordingTime). Everything the client
// sent besides the key and name is kept verbatim in Fields.
type Recording struct {
	Username      string
	RecordingTime int64
	Name          string
	Fields        map[string]json.RawMessage
}

var recordingKeys = []string{"username", "recordingTime", "name"}

func (r Recording) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["username"] = r.Username
	out["recordingTime"] = r.RecordingTime
	out["name"] = r.Name
	return json.Marshal(out)
}

func (r *Recording) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var rec Recording
	if v, ok := raw["username"]; ok {
		if err := json.Unmarshal(v, &rec.Username); err != nil {
			return err
		}
	}
	if v, ok := raw["recordingTime"]; ok {
		if err := json.Unmarshal(v, &rec.RecordingTime); err != nil {
			return err
		}
	}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &rec.Name); err != nil {
			return err
		}
	}
	for _, k := range recordingKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		rec.Fields = raw
	}
	*r = rec
	return nil
}
