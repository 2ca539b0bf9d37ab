// Package stream pushes aggregation results to WebSocket subscribers as
// they are produced, so dashboards do not have to poll the HTTP API.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType labels a streamed event.
type EventType string

const (
	EventTypeConsensus EventType = "consensus"
	EventTypeAccuracy  EventType = "accuracy"
	EventTypeSource    EventType = "source"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

// allEventTypes is the default subscription for a new client.
var allEventTypes = []EventType{
	EventTypeConsensus,
	EventTypeAccuracy,
	EventTypeSource,
	EventTypeError,
	EventTypeHeartbeat,
}

// Event is one message sent to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub fans events out to connected WebSocket clients. Clients can narrow
// what they receive with subscribe/unsubscribe messages.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscriptions map[EventType]bool
	subMu         sync.RWMutex
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Run drives the hub's event loop until the broadcast channel is drained
// and stop is closed. Run in its own goroutine.
func (h *Hub) Run(stop <-chan struct{}) {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("stream client connected", zap.Int("clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("stream client disconnected", zap.Int("clients", total))

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-heartbeat.C:
			h.Broadcast(Event{
				Type: EventTypeHeartbeat,
				Data: map[string]any{"clients": h.ClientCount()},
			})

		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("stream event marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.isSubscribed(event.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop it rather than stall everyone else.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// Broadcast queues an event for all subscribers. A full queue drops the
// event instead of blocking the producer.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("stream broadcast queue full, dropping event",
			zap.String("type", string(event.Type)))
	}
}

// BroadcastConsensus streams a fresh aggregation result.
func (h *Hub) BroadcastConsensus(result any) {
	h.Broadcast(Event{Type: EventTypeConsensus, Data: result})
}

// BroadcastAccuracy streams a new accuracy record.
func (h *Hub) BroadcastAccuracy(record any) {
	h.Broadcast(Event{Type: EventTypeAccuracy, Data: record})
}

// BroadcastSourceStatus streams source health changes.
func (h *Hub) BroadcastSourceStatus(status any) {
	h.Broadcast(Event{Type: EventTypeSource, Data: status})
}

// BroadcastError streams a pipeline error to subscribers.
func (h *Hub) BroadcastError(err error, context string) {
	h.Broadcast(Event{
		Type: EventTypeError,
		Data: map[string]any{"error": err.Error(), "context": context},
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a WebSocket subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[EventType]bool, len(allEventTypes)),
	}
	for _, t := range allEventTypes {
		c.subscriptions[t] = true
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) isSubscribed(t EventType) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[t]
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("stream read error", zap.Error(err))
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage processes subscribe/unsubscribe requests from the client.
func (c *client) handleMessage(message []byte) {
	var msg struct {
		Type   string   `json:"type"`
		Events []string `json:"events"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subMu.Lock()
		for _, e := range msg.Events {
			c.subscriptions[EventType(e)] = true
		}
		c.subMu.Unlock()
	case "unsubscribe":
		c.subMu.Lock()
		for _, e := range msg.Events {
			delete(c.subscriptions, EventType(e))
		}
		c.subMu.Unlock()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
