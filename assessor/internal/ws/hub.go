package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the connection
	// as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// snapshotLimit caps the alerts carried by one snapshot.
	snapshotLimit = types.MaxPageLimit
)

// Event names.
const (
	EventSnapshot     = "snapshot"
	EventAlertCreated = "alert.created"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CORS is applied at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Snapshot is the data of a snapshot event.
type Snapshot struct {
	Active      []types.Alert `json:"active"`
	Total       int           `json:"total"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// ActiveAlerts lists active alerts, newest first.
type ActiveAlerts func(ctx context.Context, f types.AlertFilter, p types.Page) (types.AlertPage, error)

// Hub manages client connections. It is safe for concurrent use.
type Hub struct {
	list     ActiveAlerts
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New returns a Hub that reads snapshots through list and re-broadcasts them
// every interval. An interval of zero disables the periodic snapshot.
func New(list ActiveAlerts, interval time.Duration, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		list:     list,
		interval: interval,
		log:      log.With("component", "ws"),
		now:      time.Now,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts the snapshot every interval and blocks until ctx is
// cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.interval > 0 {
		t := time.NewTicker(h.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-tick:
			if h.Count() == 0 {
				continue
			}
			data, err := h.snapshot(ctx)
			if err != nil {
				h.log.Warn("ws: build snapshot", "error", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

// Notify broadcasts a newly created alert.
func (h *Hub) Notify(_ context.Context, a types.Alert) {
	data, err := json.Marshal(Message{Event: EventAlertCreated, Data: a})
	if err != nil {
		h.log.Warn("ws: encode alert", "alert_id", a.ID, "error", err)
		return
	}
	h.broadcast(data)
}

// ServeHTTP upgrades the connection and sends the current snapshot right away.
// It blocks until the connection closes.
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

	if data, err := h.snapshot(r.Context()); err == nil {
		select {
		case c.send <- data:
		default:
		}
	} else {
		h.log.Warn("ws: build snapshot", "error", err)
	}

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) snapshot(ctx context.Context) ([]byte, error) {
	page, err := h.list(ctx, types.AlertFilter{Status: types.AlertActive}, types.Page{Page: 1, Limit: snapshotLimit})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Event: EventSnapshot,
		Data:  Snapshot{Active: page.Items, Total: page.Total, GeneratedAt: h.now().UTC()},
	})
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast holds the read lock while sending so no send races a close.
func (h *Hub) broadcast(data []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("ws: client too slow, disconnecting")
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards queued messages and sends pings. One per client.
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

// readPump handles control frames and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
