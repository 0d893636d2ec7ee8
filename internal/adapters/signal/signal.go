package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/app/orch"
	"github.com/dkeye/Jam/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// DefaultReadLimit caps one inbound frame. A saveRecording carries the
// whole note list, so this is sized for recordings, not for notes.
const DefaultReadLimit = 1 << 20

type Options struct {
	ReadLimit  int64            // <= 0 picks DefaultReadLimit
	SendBuffer int              // frames queued per connection
	PongWait   time.Duration    // <= 0 picks defaultPongWait
	Limiter    *RoomRateLimiter // nil disables join rate limiting
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RoomRateLimiter

	readLimit  int64
	sendBuffer int
	pongWait   time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &SignalWSController{
		Orch:       o,
		Limiter:    opts.Limiter,
		readLimit:  opts.ReadLimit,
		sendBuffer: opts.SendBuffer,
		pongWait:   opts.PongWait,
	}
}

// WsSignalConn queues frames for the write pump. The send channel is
// never closed; done marks the end of the connection instead.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	done      chan struct{}
	closeOnce sync.Once
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
		done: make(chan struct{}),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close stops the write pump, which says goodbye to the peer and closes
// the socket.
func (c *WsSignalConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the pumps. Every socket gets
// a fresh session id; the client token only tags the logs.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	client := c.GetString(ClientTokenKey)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", client).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)
	conn := newWsSignalConn(ws, ctl.sendBuffer)

	ctx, cancel := context.WithCancel(ctx)
	closeConn := func() {
		cancel()
		conn.Close()
	}
	if err := ctl.Orch.Loop.Submit(func() { ctl.Orch.Connect(sid, conn, closeConn) }); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("register connection")
		cancel()
		_ = ws.Close()
		return
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

// ClientTokenKey is where the router leaves the session's client token.
const ClientTokenKey = "client_token"
