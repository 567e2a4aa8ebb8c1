package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

const (
	// streamType labels the connection metrics for the live event tail.
	streamType = "events"

	defaultSendBuffer = 256
	defaultHeartbeat  = 10 * time.Second
	defaultReadLimit  = 4 << 10
	writeWait         = 10 * time.Second
)

// Hub fans normalized events out to connected tail subscribers. Slow
// subscribers have frames dropped rather than stalling the pipeline.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *models.Event
	heartbeat  time.Duration
	readLimit  int64
	logger     logger.Logger
	mu         sync.RWMutex
}

// Client is one tail subscriber with optional server-side filters.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	service  string
	minLevel models.LogLevel
	dropped  uint64
}

// Message is the frame envelope written to subscribers.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Dropped   uint64      `json:"dropped,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewHub(cfg config.WebSocketConfig, log logger.Logger) *Hub {
	heartbeat := time.Duration(cfg.PingInterval) * time.Second
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	readLimit := int64(cfg.MaxMessageSize)
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *models.Event, 512),
		heartbeat:  heartbeat,
		readLimit:  readLimit,
		logger:     log,
	}
}

// NewClient wraps an upgraded connection. service filters to one
// service; minLevel drops events ranking below it. Empty values match
// everything.
func (h *Hub) NewClient(conn *websocket.Conn, userID, service, minLevel string) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, defaultSendBuffer),
		userID:   userID,
		service:  service,
		minLevel: models.NormalizeLevel(minLevel),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			monitoring.ActiveWebSocketConnections.WithLabelValues(streamType).Inc()
			h.logger.Info("tail client connected",
				"user", client.userID,
				"service", client.service,
				"minLevel", client.minLevel,
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				monitoring.ActiveWebSocketConnections.WithLabelValues(streamType).Dec()
			}
			h.mu.Unlock()

			h.logger.Info("tail client disconnected", "user", client.userID)

		case event := <-h.broadcast:
			h.dispatch(event)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				monitoring.ActiveWebSocketConnections.WithLabelValues(streamType).Dec()
			}
			h.mu.Unlock()
			return
		}
	}
}

// BroadcastEvent queues an event for fan-out. It never blocks: when the
// hub itself is saturated the frame is dropped and counted.
func (h *Hub) BroadcastEvent(event *models.Event) {
	if event == nil {
		return
	}
	select {
	case h.broadcast <- event:
	default:
		monitoring.WebSocketDroppedFrames.WithLabelValues(streamType).Inc()
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register hands a client to the hub and starts its pumps.
func (h *Hub) Register(client *Client) {
	h.register <- client
	go client.writePump()
	go client.readPump()
}

func (h *Hub) dispatch(event *models.Event) {
	frame, err := json.Marshal(Message{Type: "event", Data: event, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error("failed to marshal tail frame", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- frame:
		default:
			atomic.AddUint64(&client.dropped, 1)
			monitoring.WebSocketDroppedFrames.WithLabelValues(streamType).Inc()
		}
	}
}

// wants applies the client's filters to an event.
func (c *Client) wants(event *models.Event) bool {
	if c.service != "" && event.Service != c.service {
		return false
	}
	if c.minLevel != "" && event.Level.Rank() < c.minLevel.Rank() {
		return false
	}
	return true
}

// writePump drains the send buffer and emits a heartbeat carrying the
// dropped-frame count so clients can tell when they fell behind.
func (c *Client) writePump() {
	heartbeat := time.NewTicker(c.hub.heartbeat)
	defer func() {
		heartbeat.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.unregister <- c
				return
			}

		case <-heartbeat.C:
			frame, err := json.Marshal(Message{
				Type:      "heartbeat",
				Dropped:   atomic.LoadUint64(&c.dropped),
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.unregister <- c
				return
			}
		}
	}
}

// readPump discards inbound frames and unregisters on close or error.
// Dead connections surface through heartbeat write failures, so no read
// deadline is needed for idle clients.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.readLimit)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
