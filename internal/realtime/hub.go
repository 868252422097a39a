// internal/realtime/hub.go
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Message is the frame pushed to connected clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Registry tracks live connections per user and pushes messages to them.
type Registry interface {
	Register(userID string, conn *websocket.Conn) *Client
	Unregister(c *Client)
	Send(ctx context.Context, userID string, msg Message) (int, error)
}

var _ Registry = (*Hub)(nil)

// Client is one registered connection.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

func (c *Client) UserID() string { return c.userID }

// Hub tracks live websocket connections per user. A user may hold several
// connections (tabs, devices); every one of them receives each message.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
	logger   logger.Logger
}

func NewHub(log logger.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  log.WithFields(map[string]interface{}{"component": "realtime-hub"}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request and keeps the connection registered for
// userID until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{"userId": userID, "error": err})
		return
	}
	h.readPump(h.Register(userID, conn))
}

// Register adds conn to userID's connections and starts its writer. The
// connection is closed once it is unregistered.
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	c := &Client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	h.logger.Debug("Client connected", map[string]interface{}{"userId": userID})

	go h.writePump(c)
	return c
}

// Unregister removes c. Calling it more than once is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			metrics.RealtimeConnections.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Client read error", map[string]interface{}{"userId": c.userID, "error": err})
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send pushes msg to every connection of userID and returns how many
// connections accepted it. Slow connections with a full buffer are skipped.
func (h *Hub) Send(_ context.Context, userID string, msg Message) (int, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- body:
			delivered++
		default:
			h.logger.Warn("Dropping realtime message for slow client", map[string]interface{}{"userId": userID, "type": msg.Type})
		}
	}
	return delivered, nil
}

// Connections reports the number of live connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
