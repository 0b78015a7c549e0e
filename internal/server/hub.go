package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/chart"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 32
	writeTimeout = 5 * time.Second
)

const (
	MessageSnapshot = "snapshot"
	MessageDevice   = "device"
)

// Message is pushed to browsers over /ws. A snapshot message carries every
// device; a device message carries the one whose chart just refreshed.
type Message struct {
	Type    string                    `json:"type"`
	Devices []registry.DeviceSnapshot `json:"devices,omitempty"`
	Device  *registry.DeviceSnapshot  `json:"device,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans chart refreshes out to connected browsers. A client that falls
// behind is disconnected rather than blocking the publisher.
type Hub struct {
	logger   logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Component("dashboard")
	}

	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach publishes every refresh of dev's charts. It is meant for
// registry.WithOnCreate.
func (h *Hub) Attach(dev *registry.DeviceCharts) {
	hook := func(*chart.Chart) {
		h.PublishDevice(dev)
	}
	dev.Distribution.SetRefreshHook(hook)
	dev.Counter.SetRefreshHook(hook)
}

// PublishDevice sends dev's current charts to every client.
func (h *Hub) PublishDevice(dev *registry.DeviceCharts) {
	if h.Len() == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Snapshot under the lock so a joining client either sees this refresh
	// in its initial snapshot or receives it as an update.
	snap := dev.Snapshot()
	payload, err := json.Marshal(Message{Type: MessageDevice, Device: &snap})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode dashboard update")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Str("remote_addr", c.conn.RemoteAddr().String()).Msg("Dashboard client too slow, disconnecting")
			delete(h.clients, c)
			c.close()
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// ServeWS upgrades the request and registers the client. The first message
// is a snapshot taken after registration, so no refresh falls between it and
// the live updates.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, snapshot func() []registry.DeviceSnapshot) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade dashboard connection")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}

	payload, err := json.Marshal(Message{Type: MessageSnapshot, Devices: snapshot()})
	if err != nil {
		h.mu.Unlock()
		h.logger.Error().Err(err).Msg("Failed to encode dashboard snapshot")
		conn.Close()
		return
	}
	c.send <- payload
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Dashboard client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(c)
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("Dashboard client error")
			}
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
