package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/metrics"
	"golang.org/x/time/rate"
)

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type ClientConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	PongWait       time.Duration
	WriteWait      time.Duration
	// RateLimit is inbound frames per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:     64,
		MaxMessageSize: 64 * 1024,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		RateLimit:      50,
		RateBurst:      100,
	}
}

// Client drives one signaling WebSocket: ReadPump hands frames to the Core,
// WritePump drains the send queue. Only WritePump writes data frames.
type Client struct {
	id      string
	roomID  string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	cfg     ClientConfig
	limiter *rate.Limiter
	logger  logging.Logger
	state   atomic.Int32

	terminateOnce sync.Once
	closeCode     int
	closeReason   string
}

func NewClient(conn *websocket.Conn, roomID string, cfg ClientConfig, logger logging.Logger) *Client {
	defaults := DefaultClientConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}

	c := &Client{
		id:     uuid.NewString(),
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		cfg:    cfg,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c
}

func (c *Client) ID() string     { return c.id }
func (c *Client) RoomID() string { return c.roomID }

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Terminate stops the write pump, which sends a close frame with code (when
// non-zero) and closes the socket. Queued frames are dropped.
func (c *Client) Terminate(code int, reason string) {
	c.terminateOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// Join registers the client in its room and moves it to Joined.
func (c *Client) Join(ctx context.Context, core *Core) error {
	if err := core.Join(ctx, c); err != nil {
		c.state.Store(int32(StateClosed))
		return err
	}

	c.state.Store(int32(StateJoined))
	return nil
}

// Reject reports a failed join to a client whose pumps never started.
func (c *Client) Reject(msg *WSMessage, code int, reason string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg.Encode()); err != nil {
		c.logger.Debugf("ws reject write error (client %s): %v", c.id, err)
	}

	c.Terminate(code, reason)
	c.writeClose()
	_ = c.conn.Close()
	c.state.Store(int32(StateClosed))
}

func (c *Client) ReadPump(core *Core) {
	reason := metrics.ReasonClosed
	code, text := websocket.CloseNormalClosure, ""

	defer func() {
		core.Leave(context.Background(), c, reason)
		c.Terminate(code, text)
		c.state.Store(int32(StateClosed))
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				reason = metrics.ReasonMalformed
				code, text = websocket.CloseMessageTooBig, "message too big"
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debugf("ws read error (client %s): %v", c.id, err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			reason = metrics.ReasonMalformed
			code, text = websocket.CloseUnsupportedData, "text frames only"
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			reason = metrics.ReasonRateLimited
			code, text = websocket.ClosePolicyViolation, "rate limit exceeded"
			return
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			c.logger.Warn(logging.WebSocket, logging.Relay, "malformed frame", map[logging.ExtraKey]any{
				logging.RoomID:       c.roomID,
				logging.PeerID:       c.id,
				logging.ErrorMessage: err.Error(),
			})
			reason = metrics.ReasonMalformed
			code, text = websocket.CloseUnsupportedData, "malformed message"
			return
		}

		core.Relay(c, frame)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		// Unblocks ReadPump, which then leaves the room
		c.Terminate(0, "")
		_ = c.conn.Close()
	}()

	for {
		// Termination wins over queued frames
		select {
		case <-c.done:
			c.writeClose()
			return
		default:
		}

		select {
		case <-c.done:
			c.writeClose()
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debugf("ws write error (client %s): %v", c.id, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	if c.closeCode == 0 {
		return
	}

	msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
}
