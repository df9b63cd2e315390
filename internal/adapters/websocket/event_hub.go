// Package websocket streams domain events to connected operator consoles
package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crm-whatsapp/internal/core/domain"
)

// EventHub manages WebSocket connections and fans domain events out to them.
// One publisher, N operator consoles; each console only sees its organization.
type EventHub struct {
	clients map[*Client]struct{}

	// Buffered, drop-if-full
	broadcast chan envelope

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns
	done     chan struct{}
	doneOnce sync.Once

	mu sync.RWMutex

	secretKey string
	upgrader  websocket.Upgrader
}

// Client represents a connected operator console
type Client struct {
	hub   *EventHub
	conn  *websocket.Conn
	send  chan []byte
	orgID string // empty receives every organization
}

type envelope struct {
	orgID   string
	payload []byte
}

const (
	broadcastBufferSize = 256
	clientBufferSize    = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewEventHub creates a hub. An empty secretKey rejects every connection.
func NewEventHub(secretKey string) *EventHub {
	return &EventHub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan envelope, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		secretKey:  secretKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Consoles are authenticated by the secret key, not the origin
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run is the hub's event loop; it closes every client when ctx is done
func (h *EventHub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("Operator console connected", "organization_id", client.orgID, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("Operator console disconnected", "organization_id", client.orgID, "total", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.orgID != "" && client.orgID != msg.orgID {
					continue
				}
				// A slow console loses messages instead of stalling the hub
				select {
				case client.send <- msg.payload:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues an event for broadcast. It never blocks: when the buffer is
// full the event is dropped for the websocket stream only.
func (h *EventHub) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	select {
	case h.broadcast <- envelope{orgID: event.OrganizationID, payload: payload}:
	default:
		slog.Warn("Event hub buffer full, dropping event", "type", event.Type)
	}
	return nil
}

// ServeWS upgrades an operator console connection.
// Route: /ws/events?secret_key=...&organization_id=...
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key := query.Get("secret_key")
	if h.secretKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.secretKey)) != 1 {
		http.Error(w, "Unauthorized: Invalid or missing secret_key", http.StatusUnauthorized)
		slog.Warn("Unauthorized websocket attempt", "remote_addr", r.RemoteAddr)
		return
	}
	if h.stopped() {
		http.Error(w, "Event hub is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, clientBufferSize),
		orgID: query.Get("organization_id"),
	}
	if !h.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ServeHTTP lets the hub be mounted directly on a router
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// join hands the client to Run; false once Run has returned
func (h *EventHub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands the client back to Run; a no-op once Run has returned
func (h *EventHub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *EventHub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ClientCount returns the current number of connected consoles
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
	}
}

// writePump sends one event per text frame and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
