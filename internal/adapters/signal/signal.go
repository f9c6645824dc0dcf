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
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  5 * time.Second,
		SendBuffer: 64,
	}
}

type SignalWSController struct {
	Orch       *orch.Orchestrator
	Limiter    *ChatRateLimiter
	ICEServers []webrtc.ICEServer
	Opts       Options
}

func NewSignalWSController(o *orch.Orchestrator, limiter *ChatRateLimiter, ice []webrtc.ICEServer, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		Limiter:    limiter,
		ICEServers: ice,
		Opts:       opts,
	}
}

// Welcome is the first frame on every connection.
type Welcome struct {
	Type            string             `json:"type"`
	ConnectionID    domain.ConnID      `json:"connectionId"`
	ClientID        string             `json:"clientId,omitempty"`
	MaxParticipants int                `json:"maxParticipants"`
	ICEServers      []webrtc.ICEServer `json:"iceServers"`
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until the peer
// goes away or ctx ends. Every connection gets a fresh id.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.ConnID(uuid.NewString())
	client := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(sid)).Str("client", client).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.Opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, client, conn, cancel)

	ctl.sendJSON(conn, Welcome{
		Type:            core.EventWelcome,
		ConnectionID:    sid,
		ClientID:        client,
		MaxParticipants: domain.MaxParticipants,
		ICEServers:      ctl.ICEServers,
	})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
