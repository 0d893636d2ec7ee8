package core

import (
	"github.com/goccy/go-json"
)

// Event names on the wire.
const (
	EventJoinRoom  = "joinRoom"
	EventLeaveRoom = "leaveRoom"
	EventNoteOn    = "note_on"
	EventNoteOff   = "note_off"

	EventNewUser          = "newUser"
	EventUserDisconnected = "userDisconnected"

	EventPing    = "ping"
	EventPong    = "pong"
	EventLatency = "latency"

	EventGetRecordings       = "getRecordings"
	EventRecordingsList      = "recordingsList"
	EventSaveRecording       = "saveRecording"
	EventRecordingSaved      = "recordingSaved"
	EventUpdateRecordingName = "updateRecordingName"
	EventRecordingUpdated    = "recordingUpdated"
	EventDeleteRecording     = "deleteRecording"
	EventRecordingDeleted    = "recordingDeleted"

	EventError = "error"
)

// ErrorEvent names the error reply for a request event.
func ErrorEvent(request string) string { return request + "Error" }

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode builds a frame for event typ. A nil data omits the field.
func Encode(typ string, data any) (Frame, error) {
	return json.Marshal(outEnvelope{Type: typ, Data: data})
}

// Decode parses an inbound frame.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(b, &env)
	return env, err
}

type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type PingMessage struct {
	Round uint64 `json:"round"`
}

// PongMessage echoes the round of the ping it answers. Round is nil for
// clients that send a bare pong.
type PongMessage struct {
	Round *uint64 `json:"round,omitempty"`
}

type LatencyMessage struct {
	Username string `json:"username"`
	Latency  int64  `json:"latency"`
}

type RenameRequest struct {
	RecordingTime int64  `json:"recordingTime"`
	NewName       string `json:"newName"`
}

type DeleteRequest struct {
	RecordingTime int64 `json:"recordingTime"`
}

type RecordingAck struct {
	RecordingTime int64 `json:"recordingTime"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
