package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Delivery event kinds.
const (
	KindWebhookTest  = "webhook_test"
	KindNotification = "webhook_notification"
)

// Delivery outcomes shown on the dashboard.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// DeliveryEvent is a live update pushed to dashboard clients after every
// delivery attempt.
type DeliveryEvent struct {
	Kind           string    `json:"kind"`
	Outcome        string    `json:"outcome"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	TenantID       string    `json:"tenant_id"`
	RegistrationID string    `json:"registration_id"`
	URL            string    `json:"url"`
	StatusCode     *int      `json:"status_code,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewDeliveryEvent summarizes one attempt. err wins over result.
func NewDeliveryEvent(kind string, env *domain.EventEnvelope, reg *domain.WebhookRegistration, result *domain.DeliveryResult, err error) DeliveryEvent {
	ev := DeliveryEvent{
		Kind:           kind,
		EventID:        env.ID,
		EventType:      env.Event,
		TenantID:       reg.TenantID,
		RegistrationID: reg.ID,
		URL:            reg.URL,
		Timestamp:      time.Now().UTC(),
	}

	switch {
	case err != nil:
		ev.Outcome = OutcomeFailed
		ev.Error = err.Error()
	case result != nil:
		status := result.Status
		ev.StatusCode = &status
		ev.DurationMs = result.DurationMs
		ev.Outcome = OutcomeDelivered
		if !result.OK() {
			ev.Outcome = OutcomeRejected
		}
	default:
		ev.Outcome = OutcomeSkipped
	}
	return ev
}

type message struct {
	tenantID string
	data     []byte
}

// Hub fans delivery events out to connected dashboard clients. Clients may
// subscribe to a single tenant with ?tenant=<id>.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.RWMutex
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *slog.Logger
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tenantID string
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run drives the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "total_clients", total, "tenant_id", c.tenantID)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			var slow []*client
			h.mu.RLock()
			for c := range h.clients {
				if c.tenantID != "" && c.tenantID != msg.tenantID {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range slow {
				h.logger.Warn("dropping slow websocket client", "tenant_id", c.tenantID)
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("websocket client disconnected", "total_clients", len(h.clients))
	}
}

// Broadcast queues an event without blocking the caller.
func (h *Hub) Broadcast(event DeliveryEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "error", err)
		return
	}

	select {
	case h.broadcast <- message{tenantID: event.TenantID, data: data}:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping event", "event_id", event.EventID)
	}
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		tenantID: r.URL.Query().Get("tenant"),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for disconnects and pongs.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
