package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/papertrade/metrics"
	"github.com/rustyeddy/papertrade/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub streams every notification emitted on the feed to the connected
// websocket clients.
type Hub struct {
	events  <-chan notify.Notification
	cancel  func()
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex // per-conn write lock
}

func NewHub(feed *notify.Feed, m *metrics.Metrics, logger *slog.Logger) *Hub {
	// Subscribe up front so nothing emitted before Run starts is missed.
	events, cancel := feed.Subscribe(64)
	return &Hub{
		events:  events,
		cancel:  cancel,
		metrics: m,
		logger:  logger.With(slog.String("component", "api.ws")),
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // the UI may be served from another origin
	},
}

// Run broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.cancel()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case n, ok := <-h.events:
			if !ok {
				h.closeAll()
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			h.broadcast(websocket.TextMessage, data)
		case <-ping.C:
			h.broadcast(websocket.PingMessage, nil)
		}
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS handles websocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	total := len(h.clients)
	h.mu.Unlock()
	h.metrics.WebSocketClients.Inc()
	h.logger.Info("ws client connected", slog.Int("total", total))

	// Read pump: clients only send pongs and close frames.
	go func() {
		defer h.remove(conn)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) broadcast(kind int, data []byte) {
	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, wmu := range h.clients {
		targets[c] = wmu
	}
	h.mu.Unlock()

	for c, wmu := range targets {
		wmu.Lock()
		c.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.WriteMessage(kind, data)
		wmu.Unlock()
		if err != nil {
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.Close()
		h.metrics.WebSocketClients.Dec()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.remove(c)
	}
}
