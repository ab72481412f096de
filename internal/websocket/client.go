package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

// Timing controls the keepalive of one client
type Timing struct {
	PongWait   time.Duration
	PingPeriod time.Duration
}

// DefaultTiming waits 60s for a pong and pings at 9/10 of that
func DefaultTiming() Timing {
	return Timing{PongWait: 60 * time.Second, PingPeriod: 54 * time.Second}
}

// TimingFrom reads the keepalive from configuration, falling back to
// DefaultTiming for unset values
func TimingFrom(cfg config.WebSocketConfig) Timing {
	t := DefaultTiming()
	if cfg.PongWait > 0 {
		t.PongWait = cfg.PongWait
		t.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.PingPeriod > 0 && cfg.PingPeriod < t.PongWait {
		t.PingPeriod = cfg.PingPeriod
	}
	return t
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub    *Hub
	conn   Connection
	send   chan []byte
	timing Timing

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for an established connection
func NewClient(hub *Hub, conn Connection, traceID string, timing Timing, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	id := uuid.NewString()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		timing:      timing,
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump drains the connection until it fails. Clients only send
// heartbeats, so payloads are counted and discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.context(), "unexpected websocket close",
					slog.String("error", err.Error()))
			}
			return
		}
		message = bytes.TrimSpace(message)
		c.hub.metrics.RecordReceived()
		if string(message) == `{"type":"heartbeat"}` {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
		}
	}
}

// WritePump forwards hub messages to the connection and keeps it alive
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.timing.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.WarnContext(c.context(), "websocket write failed",
					slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "websocket ping failed",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Handler upgrades HTTP requests and attaches the connection to the hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	timing   Timing
	logger   *slog.Logger
}

// NewHandler builds the /ws endpoint. allowedOrigins empty accepts any origin.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	h := &Handler{
		hub:    hub,
		timing: TimingFrom(cfg),
		logger: logger.With(slog.String("component", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, traceID := infrastructure.EnsureTraceID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	client := NewClient(h.hub, WrapConn(conn), traceID, h.timing, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(ctx, "websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("client_id", client.id))

	go client.WritePump()
	go client.ReadPump()
}
