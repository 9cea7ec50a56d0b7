// Package realtime implements the live-update fabric: a duplex websocket
// broadcast channel that delivers operation progress and system
// notifications to subscribed clients, with per-operation subscriptions,
// a bounded per-client send buffer that drops progress frames when full,
// and a periodic heartbeat.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/metrics"
)

// NotificationLevel classifies a notification frame.
type NotificationLevel string

const (
	LevelInfo               NotificationLevel = "info"
	LevelWarning            NotificationLevel = "warning"
	LevelError              NotificationLevel = "error"
	LevelSuccess            NotificationLevel = "success"
	LevelCursorInvalidation NotificationLevel = "cursor_invalidation"
	LevelCacheInvalidation  NotificationLevel = "cache_invalidation"
)

// Envelope is the message wrapper every server-sent frame uses.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
}

func newEnvelope(msgType string, data any) Envelope {
	return Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: uuid.NewString(),
	}
}

// ProgressPayload is the data field of an operation_progress frame.
type ProgressPayload struct {
	OperationID string  `json:"operation_id"`
	Processed   int     `json:"processed_count"`
	Total       int     `json:"total_items"`
	Percent     float64 `json:"progress_percent"`
	Message     string  `json:"message"`
	Status      string  `json:"status"`
}

// VideoUpdate is the cursor_invalidation payload's nested video_update object.
type VideoUpdate struct {
	VideoID string         `json:"video_id"`
	Action  string         `json:"action"`
	Changes map[string]any `json:"changes,omitempty"`
}

// CacheInvalidation is the cache_invalidation payload's nested object.
type CacheInvalidation struct {
	CacheKeys []string `json:"cache_keys"`
	Reason    string   `json:"reason"`
}

// NotificationPayload is the data field of a notification frame.
type NotificationPayload struct {
	Message           string             `json:"message"`
	Level             NotificationLevel  `json:"level"`
	Data              any                `json:"data,omitempty"`
	Type              string             `json:"type,omitempty"`
	VideoUpdate       *VideoUpdate       `json:"video_update,omitempty"`
	CacheInvalidation *CacheInvalidation `json:"cache_invalidation,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	heartbeatEvery = 30 * time.Second
	clientSendBuf  = 64
)

// client is one connected websocket peer.
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan Envelope
	hub     *Hub
	mu      sync.Mutex
	subs    map[string]bool // operation ids this client is subscribed to
	closed  bool
	closeCh chan struct{}
}

func (c *client) subscribe(opID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[opID] = true
}

func (c *client) unsubscribe(opID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, opID)
}

func (c *client) isSubscribed(opID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[opID]
}

// enqueue attempts a non-blocking send and reports whether the frame was
// queued. A closed client or a full send buffer returns false and the frame
// is discarded; the client stays connected.
func (c *client) enqueue(env Envelope) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Hub tracks connected clients and their operation subscriptions, and is the
// Broadcaster the operation manager publishes progress events into.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
	logger  *zap.Logger

	upgrader websocket.Upgrader

	stopHeartbeat chan struct{}
	stopped       bool
}

// NewHub builds a Hub and starts its heartbeat loop.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		stopHeartbeat: make(chan struct{}),
	}
	go h.heartbeatLoop()
	return h
}

// Close stops the heartbeat loop. Connected clients are left to disconnect
// on their own read-pump errors.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()
	close(h.stopHeartbeat)
}

func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.broadcastAll(newEnvelope("heartbeat", map[string]any{"status": "alive"}))
		case <-h.stopHeartbeat:
			return
		}
	}
}

// ServeHTTP upgrades an HTTP request to a websocket connection and runs the
// client's read/write pumps until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan Envelope, clientSendBuf),
		hub:     h,
		subs:    make(map[string]bool),
		closeCh: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	metrics.RealtimeClients.Inc()

	go c.writePump()
	h.sendWelcome(c)
	c.readPump()
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	_, existed := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if existed {
		metrics.RealtimeClients.Dec()
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.closeCh)
}

func (c *client) readPump() {
	defer c.hub.removeClient(c)
	defer c.conn.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.hub.handleControlFrame(c, raw)
	}
}

func (c *client) writePump() {
	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.hub.logger.Debug("websocket write error", zap.Error(err))
				c.conn.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// controlFrame is the shape of an incoming client control message.
type controlFrame struct {
	Action      string `json:"action"`
	OperationID string `json:"operation_id"`
}

func (h *Hub) handleControlFrame(c *client, raw []byte) {
	var frame controlFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	switch frame.Action {
	case "subscribe":
		c.subscribe(frame.OperationID)
		c.enqueue(newEnvelope("subscribed", map[string]any{"operation_id": frame.OperationID}))
	case "unsubscribe":
		c.unsubscribe(frame.OperationID)
		c.enqueue(newEnvelope("unsubscribed", map[string]any{"operation_id": frame.OperationID}))
	case "ping":
		c.enqueue(newEnvelope("heartbeat", map[string]any{"status": "pong"}))
	case "get_status":
		c.enqueue(newEnvelope("system_status", h.statusSnapshot()))
	}
}

func (h *Hub) statusSnapshot() map[string]any {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	return map[string]any{"connected_clients": n}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// sendWelcome is invoked right after upgrade: each client receives a welcome
// message carrying its client_id before anything else.
func (h *Hub) sendWelcome(c *client) {
	c.enqueue(newEnvelope("connected", map[string]any{"client_id": c.id}))
}
