package signal

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Jam/internal/adapters/store"
	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/app/orch"
	"github.com/dkeye/Jam/internal/core"
)

type testServer struct {
	srv  *httptest.Server
	orch *orch.Orchestrator
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry()
	rooms := app.NewRoomManager(reg)
	o := orch.New(reg, rooms, store.NewMemory(), orch.Settings{ProbePeriod: -1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	ctrl := NewSignalWSController(o, opts)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &testServer{srv: srv, orch: o}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(typ string, data any) {
	c.t.Helper()
	frame, err := core.Encode(typ, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

func (c *wsClient) next() core.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	env, err := core.Decode(data)
	require.NoError(c.t, err)
	return env
}

// until reads frames up to and including the first one of type typ and
// returns everything read.
func (c *wsClient) until(typ string) []core.Envelope {
	c.t.Helper()
	var seen []core.Envelope
	for {
		env := c.next()
		seen = append(seen, env)
		if env.Type == typ {
			return seen
		}
	}
}

func (c *wsClient) join(room, name string) {
	c.t.Helper()
	c.send(core.EventJoinRoom, core.JoinRequest{RoomID: room, Username: name})
	for {
		env := c.until(core.EventNewUser)
		var who string
		require.NoError(c.t, json.Unmarshal(env[len(env)-1].Data, &who))
		if who == name {
			return
		}
	}
}

func last(envs []core.Envelope) json.RawMessage { return envs[len(envs)-1].Data }

func count(envs []core.Envelope, typ string) int {
	n := 0
	for _, e := range envs {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestSignal_NoteRelayedToRoomMates(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.dial(t)
	bob := s.dial(t)
	alice.join("room1", "alice")
	bob.join("room1", "bob")

	alice.send(core.EventNoteOn, map[string]any{"pitch": 60})
	got := bob.until(core.EventNoteOn)
	assert.JSONEq(t, `{"pitch":60,"username":"alice"}`, string(last(got)))

	// alice's next note_on must be bob's, not an echo of her own
	bob.send(core.EventNoteOn, map[string]any{"pitch": 61})
	got = alice.until(core.EventNoteOn)
	assert.JSONEq(t, `{"pitch":61,"username":"bob"}`, string(last(got)))
}

func TestSignal_DisconnectAnnouncedOnce(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.dial(t)
	bob := s.dial(t)
	alice.join("room1", "alice")
	bob.join("room1", "bob")

	require.NoError(t, alice.conn.Close())
	got := bob.until(core.EventUserDisconnected)
	var who string
	require.NoError(t, json.Unmarshal(last(got), &who))
	assert.Equal(t, "alice", who)

	carol := s.dial(t)
	carol.join("room1", "carol")
	rest := bob.until(core.EventNewUser)
	assert.Equal(t, 0, count(rest, core.EventUserDisconnected))
}

func TestSignal_LatencyRoundTrip(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.dial(t)
	bob := s.dial(t)
	alice.join("room1", "alice")
	bob.join("room1", "bob")

	require.NoError(t, s.orch.Loop.Submit(s.orch.ProbeRound))
	ping := alice.until(core.EventPing)
	var p core.PingMessage
	require.NoError(t, json.Unmarshal(last(ping), &p))
	assert.Equal(t, uint64(1), p.Round)

	alice.send(core.EventPong, core.PongMessage{Round: &p.Round})
	got := bob.until(core.EventLatency)
	var lat core.LatencyMessage
	require.NoError(t, json.Unmarshal(last(got), &lat))
	assert.Equal(t, "alice", lat.Username)
	assert.GreaterOrEqual(t, lat.Latency, int64(0))
}

func TestSignal_Recordings(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.dial(t)
	alice.join("room1", "alice")

	alice.send(core.EventSaveRecording, map[string]any{"recordingTime": 5, "name": "take", "bpm": 90})
	alice.until(core.EventRecordingSaved)

	alice.send(core.EventGetRecordings, nil)
	got := alice.until(core.EventRecordingsList)
	assert.JSONEq(t, `[{"username":"alice","recordingTime":5,"name":"take","bpm":90}]`, string(last(got)))

	alice.send(core.EventUpdateRecordingName, map[string]any{"recordingTime": "bad"})
	got = alice.until(core.ErrorEvent(core.EventUpdateRecordingName))
	assert.JSONEq(t, `{"message":"bad_payload"}`, string(last(got)))
}

func TestSignal_BadFrames(t *testing.T) {
	s := newTestServer(t, Options{})
	c := s.dial(t)

	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"not json", `hello`, `{"error":"bad_payload"}`},
		{"no type", `{"data":1}`, `{"error":"bad_payload"}`},
		{"unknown type", `{"type":"dance"}`, `{"error":"unknown_type"}`},
		{"join without room", `{"type":"joinRoom","data":{"username":"x"}}`, `{"error":"room_required"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			env := c.next()
			assert.Equal(t, core.EventError, env.Type)
			assert.JSONEq(t, tt.want, string(env.Data))
		})
	}
}

func TestSignal_JoinRateLimited(t *testing.T) {
	s := newTestServer(t, Options{Limiter: NewRoomRateLimiter(2, time.Minute)})
	c := s.dial(t)
	c.join("room1", "alice")
	c.join("room2", "alice")

	c.send(core.EventJoinRoom, core.JoinRequest{RoomID: "room3", Username: "alice"})
	got := c.until(core.EventError)
	assert.JSONEq(t, `{"error":"rate_limited"}`, string(last(got)))
}

func TestSignal_JoinLimitDisabled(t *testing.T) {
	s := newTestServer(t, Options{Limiter: NewRoomRateLimiter(0, time.Minute)})
	c := s.dial(t)
	for i := range 5 {
		c.join(fmt.Sprintf("room%d", i), "alice")
	}
}

func TestSignal_LargeRecordingSaved(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.dial(t)
	bob := s.dial(t)
	alice.join("room1", "alice")
	bob.join("room1", "bob")

	notes := make([]map[string]any, 2000)
	for i := range notes {
		notes[i] = map[string]any{"pitch": 60 + i%12, "velocity": 100, "timestamp": i * 250}
	}
	frame, err := core.Encode(core.EventSaveRecording, map[string]any{"recordingTime": 7, "name": "long take", "notes": notes})
	require.NoError(t, err)
	require.Greater(t, len(frame), 64<<10)
	require.NoError(t, alice.conn.WriteMessage(websocket.TextMessage, frame))

	got := alice.until(core.EventRecordingSaved)
	assert.JSONEq(t, `{"recordingTime":7}`, string(last(got)))

	// bob must still see alice in the room
	alice.send(core.EventNoteOn, map[string]any{"pitch": 1})
	rest := bob.until(core.EventNoteOn)
	assert.Equal(t, 0, count(rest, core.EventUserDisconnected))
}

func TestSignal_SilentPeerDropped(t *testing.T) {
	s := newTestServer(t, Options{PongWait: 500 * time.Millisecond})
	alice := s.dial(t)
	bob := s.dial(t)
	alice.join("room1", "alice")
	bob.join("room1", "bob")

	// alice stops reading, so her client never answers pings; bob keeps
	// reading and stays alive
	got := bob.until(core.EventUserDisconnected)
	var who string
	require.NoError(t, json.Unmarshal(last(got), &who))
	assert.Equal(t, "alice", who)
}

func TestWsSignalConn_SendAndClose(t *testing.T) {
	c := newWsSignalConn(nil, 1)

	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), ErrBackpressure)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), ErrClosed)
}

func TestNewSignalWSController_Defaults(t *testing.T) {
	tests := []struct {
		opts      Options
		wantLimit int64
	}{
		{Options{}, DefaultReadLimit},
		{Options{ReadLimit: -1}, DefaultReadLimit},
		{Options{ReadLimit: 4096}, 4096},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.opts.ReadLimit), func(t *testing.T) {
			ctl := NewSignalWSController(nil, tt.opts)
			assert.Equal(t, tt.wantLimit, ctl.readLimit)
			assert.Equal(t, 64, ctl.sendBuffer)
			assert.Equal(t, defaultPongWait, ctl.pongWait)
		})
	}
}
