package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"circle/internal/middleware"
	"circle/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull  = errors.New("server connection limit reached")
	ErrUserFull    = errors.New("user connection limit reached")
	ErrHubShutdown = errors.New("hub is shutting down")
)

// Hub tracks the feed connections of this instance, keyed by userID.
// Its mutex guards only the connection map; sends never block.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	closeOnce  sync.Once
	// relayLive is set while a Redis subscription feeds this hub.
	relayLive atomic.Bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[uint]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "feed hub" }

// Register adds a connection for userID. Returns an error if limits are exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubShutdown
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()

	return client, nil
}

// UnregisterClient removes client; calling it twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.userID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.WebSocketConnectionsTotal.Dec()
	}
	if len(m) == 0 {
		delete(h.conns, client.userID)
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// BroadcastAll queues message on every connected client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.enqueue(message)
		}
	}
}

// StartWiring relays every event published on the Redis broadcast channel to
// this instance's clients until ctx is done. It is a no-op without Redis.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.StartBroadcastSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	}); err != nil {
		return err
	}

	h.relayLive.Store(true)
	go func() {
		<-ctx.Done()
		h.relayLive.Store(false)
	}()
	return nil
}

// RelayLive reports whether Redis broadcasts currently reach this hub.
func (h *Hub) RelayLive() bool {
	return h != nil && h.relayLive.Load()
}

// Shutdown closes every connection with a going-away frame and empties the hub.
func (h *Hub) Shutdown(_ context.Context) error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.closed = true
		for _, userConns := range h.conns {
			for client := range userConns {
				observability.WebSocketConnectionsTotal.Dec()
				client.Close()
			}
		}
		h.conns = make(map[uint]map[*Client]struct{})
		h.totalConns = 0
		middleware.Logger.Info("feed hub shut down")
	})
	return nil
}
