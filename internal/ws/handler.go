package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/auth"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/realtime"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Typer relays typing indicators; implemented by the command service.
type Typer interface {
	Typing(ctx context.Context, fromID, toID string, typing bool) error
}

// Tracker records connections in shared presence so other nodes see the
// user online. Touch is called on every ping to keep the entry alive.
type Tracker interface {
	Connected(ctx context.Context, userID, connID string) error
	Touch(ctx context.Context, userID, connID string) error
	Disconnected(ctx context.Context, userID, connID string) error
}

type Config struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// Envelope is a client to server frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type typingPayload struct {
	To     string `json:"to"`
	Typing bool   `json:"typing"`
}

var errUnknownFrame = errors.New("unknown frame type")

type Handler struct {
	reg     *realtime.Registry
	typer   Typer
	tracker Tracker
	conf    Config
	log     *zap.SugaredLogger
}

func NewHandler(reg *realtime.Registry, typer Typer, tracker Tracker, conf Config, log *zap.SugaredLogger) *Handler {
	if conf.PingInterval <= 0 {
		conf.PingInterval = 25 * time.Second
	}
	if conf.WriteDeadline <= 0 {
		conf.WriteDeadline = 10 * time.Second
	}
	if conf.MaxMessageSize <= 0 {
		conf.MaxMessageSize = 64 * 1024
	}
	return &Handler{reg: reg, typer: typer, tracker: tracker, conf: conf, log: log}
}

// Serve runs one upgraded connection until the client goes away. The
// caller must have authenticated the request and stored the user id.
func (h *Handler) Serve(c *websocket.Conn) {
	uid, _ := c.Locals(auth.LocalUserID).(string)
	if uid == "" {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"))
		_ = c.Close()
		return
	}

	conn := NewConnection(c, uid, h.conf.SendBuffer)
	ctx := context.Background()
	h.attach(ctx, conn)
	defer h.detach(ctx, conn)

	go func() {
		heartbeat := func() { h.heartbeat(ctx, conn) }
		if err := conn.writePump(h.conf.PingInterval, h.conf.WriteDeadline, heartbeat); err != nil {
			h.log.Debugw("ws write stopped", "user_id", uid, "conn_id", conn.ID(), "err", err)
		}
	}()

	wait := 2 * h.conf.PingInterval
	c.SetReadLimit(h.conf.MaxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(wait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("ws read error", "user_id", uid, "err", err)
			}
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(wait))
		if mt != websocket.TextMessage {
			continue
		}
		if err := h.HandleFrame(ctx, uid, data); err != nil {
			h.log.Debugw("ws frame ignored", "user_id", uid, "err", err)
		}
	}
}

// HandleFrame processes one inbound client frame.
func (h *Handler) HandleFrame(ctx context.Context, userID string, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch domain.EventType(env.Type) {
	case domain.EventTyping:
		var p typingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		return h.typer.Typing(ctx, userID, p.To, p.Typing)
	default:
		return errUnknownFrame
	}
}

func (h *Handler) attach(ctx context.Context, conn *Connection) {
	if h.reg.Register(conn.UserID(), conn) {
		h.log.Debugw("user online", "user_id", conn.UserID())
	}
	metrics.Connections.Inc()
	if h.tracker != nil {
		if err := h.tracker.Connected(ctx, conn.UserID(), conn.ID()); err != nil {
			h.log.Warnw("presence update failed", "user_id", conn.UserID(), "err", err)
		}
	}
}

func (h *Handler) heartbeat(ctx context.Context, conn *Connection) {
	if h.tracker == nil {
		return
	}
	if err := h.tracker.Touch(ctx, conn.UserID(), conn.ID()); err != nil {
		h.log.Warnw("presence refresh failed", "user_id", conn.UserID(), "err", err)
	}
}

func (h *Handler) detach(ctx context.Context, conn *Connection) {
	if h.reg.Unregister(conn.UserID(), conn.ID()) {
		h.log.Debugw("user offline", "user_id", conn.UserID())
	}
	metrics.Connections.Dec()
	if h.tracker != nil {
		if err := h.tracker.Disconnected(ctx, conn.UserID(), conn.ID()); err != nil {
			h.log.Warnw("presence update failed", "user_id", conn.UserID(), "err", err)
		}
	}
	conn.Close()
}
