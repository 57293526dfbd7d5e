package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"agora/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// ErrUserConnLimit and ErrServerConnLimit are returned by Register when a
// connection limit is reached.
var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
)

// Hub is a websocket hub that maps userID -> set of Clients and fans
// engagement events out to them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "engagement hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes a client. Removing an unknown client is a no-op.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	client.Close()
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.WebSocketConnectionsTotal.Dec()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Connections returns the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Deliver sends an encoded event to every client watching its post.
func (h *Hub) Deliver(postID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			if c.Watches(postID) {
				c.TrySend(payload)
			}
		}
	}
}

// Publish lets the hub act as an in-process Sink when no Redis is configured.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.Deliver(ev.PostID, payload)
	return nil
}

// StartWiring forwards events published to Redis by any API instance to the
// clients connected here.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, h.Deliver)
}

// Shutdown asks every client to close. WritePump sends the close frame and
// ReadPump is given writeTimeout to see the peer's reply before its read
// deadline fires.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userConns := range h.conns {
		for client := range userConns {
			client.Close()
			if client.Conn != nil {
				_ = client.Conn.SetReadDeadline(time.Now().Add(writeTimeout))
			}
		}
		observability.WebSocketConnectionsTotal.Sub(float64(len(userConns)))
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
