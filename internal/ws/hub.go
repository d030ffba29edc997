package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hydrocore/hydrocore/internal/sensor"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth. A client
	// whose buffer fills is disconnected.
	sendBufSize = 32

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event types carried on the wire.
const (
	EventMeasurement = "measurement"
	EventAlert       = "alert"
)

// Event is the JSON envelope delivered to subscribers.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// clientMessage is what the hub accepts from a subscriber.
type clientMessage struct {
	Type   string `json:"type"`
	FarmID string `json:"farm_id,omitempty"`
}

var pongMessage = []byte(`{"type":"pong"}`)

// Hub multiplexes measurement and alert events to connected subscribers.
// It holds no process-wide state: construct one per server (or per test)
// and hand it to whichever component needs to publish.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	// snapshots holds the last published measurement event per farm,
	// pre-encoded, for late joiners.
	snapshots map[string][]byte

	now func() time.Time
}

// client is one connected subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	scope  string // farm ID filter; empty receives everything
	closed bool
}

func (c *client) setScope(farmID string) {
	c.mu.Lock()
	c.scope = farmID
	c.mu.Unlock()
}

// wants reports whether events for farmID pass this client's scope filter.
func (c *client) wants(farmID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope == "" || c.scope == farmID
}

// trySend queues data without blocking. It returns false when the buffer is
// full or the client is already closed; sends and close are serialized on
// c.mu so a concurrent publish can never hit a closed channel.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown marks the client closed and closes its send channel, waking the
// write pump. Safe to call once per client; callers hold the hub lock.
func (c *client) shutdown() {
	c.mu.Lock()
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		snapshots: make(map[string][]byte),
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the stored measurement snapshots immediately on connect, then
// streams published events. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	h.sendSnapshots(c)

	go c.writePump()
	c.readPump(h) // blocks until the connection closes
}

// PublishMeasurements broadcasts a measurement batch for one farm and stores
// it as the farm's snapshot for future joiners.
func (h *Hub) PublishMeasurements(farmID string, batch []sensor.Measurement) {
	data, err := json.Marshal(Event{
		Type:      EventMeasurement,
		Payload:   batch,
		Timestamp: h.now(),
	})
	if err != nil {
		slog.Error("ws: marshal measurement event", "err", err)
		return
	}

	h.mu.Lock()
	h.snapshots[farmID] = data
	h.mu.Unlock()

	h.deliver(farmID, data)
}

// PublishAlert broadcasts a newly opened alert.
func (h *Hub) PublishAlert(a *sensor.Alert) {
	data, err := json.Marshal(Event{
		Type:      EventAlert,
		Payload:   a,
		Timestamp: h.now(),
	})
	if err != nil {
		slog.Error("ws: marshal alert event", "err", err)
		return
	}
	h.deliver(a.FarmID, data)
}

// Count returns the number of currently connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.shutdown()
	}
	h.mu.Unlock()
}

// deliver fans data out to every registered client in farmID's scope.
// A client whose buffer is full is dropped as part of the same publish;
// delivery to the remaining clients is unaffected.
func (h *Hub) deliver(farmID string, data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.wants(farmID) {
			continue
		}
		if !c.trySend(data) {
			slog.Warn("ws: subscriber buffer full, disconnecting")
			h.unregister(c)
		}
	}
}

// sendSnapshots queues the stored per-farm snapshots to a new client, in a
// stable farm order.
func (h *Hub) sendSnapshots(c *client) {
	h.mu.RLock()
	farms := make([]string, 0, len(h.snapshots))
	for farmID := range h.snapshots {
		farms = append(farms, farmID)
	}
	sort.Strings(farms)
	snaps := make([][]byte, 0, len(farms))
	for _, farmID := range farms {
		if c.wants(farmID) {
			snaps = append(snaps, h.snapshots[farmID])
		}
	}
	h.mu.RUnlock()

	for _, data := range snaps {
		if !c.trySend(data) {
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process subscriber messages
// (scope changes, pings) and detect disconnects. Blocks until the connection
// closes.
func (c *client) readPump(h *Hub) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ws: ignoring malformed client message", "err", err)
			continue
		}
		switch msg.Type {
		case "subscribe":
			c.setScope(msg.FarmID)
			h.sendSnapshots(c)
		case "ping":
			c.trySend(pongMessage)
		default:
			slog.Debug("ws: unknown client message type", "type", msg.Type)
		}
	}
}
