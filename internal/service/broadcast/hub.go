// Package broadcast streams aggregate snapshots to WebSocket clients.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"MarketScreener/internal/domain/models"
	svcmetrics "MarketScreener/internal/service/metrics"
	applogger "MarketScreener/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub keeps the last published snapshot and fans every new one out to the
// connected clients. A client that cannot keep up misses frames; it always
// converges on the latest snapshot.
type Hub struct {
	logger *applogger.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  []byte
}

func NewHub(l *applogger.Logger) *Hub {
	return &Hub{
		logger:  l,
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Publish never blocks on slow clients and succeeds with zero clients.
func (h *Hub) Publish(_ context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	h.mu.Lock()
	h.latest = data
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.offer(data)
	}
	return nil
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", applogger.Error(err))
		return
	}
	h.register(newClient(h, conn))
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	if h.latest != nil {
		c.offer(h.latest)
	}
	h.mu.Unlock()

	svcmetrics.WSClients.Inc()
	h.logger.Info("WebSocket client connected", applogger.Int("clients", count))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	svcmetrics.WSClients.Dec()
	h.logger.Info("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}
