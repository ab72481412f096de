package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/events"
)

const broadcastBuffer = 64

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *Metrics
}

type outbound struct {
	eventType string
	payload   []byte
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in its own goroutine. It is idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client. It is idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordConnection()

			ctx := client.context()
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.greet(ctx, client)

		case client := <-h.unregister:
			h.remove(client, "disconnected")

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) greet(ctx context.Context, client *Client) {
	payload, err := encode(string(events.MessageTypeConnect), events.ConnectData{
		Status:   "connected",
		Message:  "Connected to the condor finder",
		ClientID: client.id,
	}, client.traceID)
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.WarnContext(ctx, "client buffer full, greeting dropped",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	duration := time.Since(client.connectedAt)
	h.metrics.RecordDisconnection(duration)
	h.logger.InfoContext(client.context(), "client unregistered",
		slog.String("reason", reason),
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", duration))
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		select {
		case client.send <- msg.payload:
			delivered++
		default:
			h.metrics.RecordDroppedMessage()
			h.remove(client, "send buffer full")
		}
	}
	h.metrics.RecordBroadcast(msg.eventType, delivered, len(msg.payload))

	h.logger.Debug("event broadcast",
		slog.String("event", msg.eventType),
		slog.Int("client_count", len(clients)),
		slog.Int("delivered", delivered),
		slog.Int("message_size", len(msg.payload)))
}

// BroadcastEvent queues an event for every connected client. Events sent
// while the hub is stopped or its queue is full are dropped.
func (h *Hub) BroadcastEvent(eventType string, data interface{}, traceID string) {
	payload, err := encode(eventType, data, traceID)
	if err != nil {
		h.logger.Error("failed to marshal event",
			slog.String("event", eventType),
			slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	select {
	case h.broadcast <- outbound{eventType: eventType, payload: payload}:
	default:
		h.metrics.RecordDroppedMessage()
		h.logger.Warn("broadcast queue full, event dropped",
			slog.String("event", eventType))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Metrics returns the hub counters
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

func encode(eventType string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      events.MessageType(eventType),
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}
