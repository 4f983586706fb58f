package hub

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Client is one connected query session.
type Client struct {
	ID          string
	Send        chan []byte
	ConnectedAt time.Time

	delivered atomic.Int64

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:          id,
		Send:        make(chan []byte, bufferSize),
		ConnectedAt: time.Now(),
	}
}

// Delivered counts the messages queued for the session.
func (c *Client) Delivered() int64 {
	return c.delivered.Load()
}

// Deliver queues a message without blocking. It reports false when the
// session's buffer is full.
func (c *Client) Deliver(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		c.delivered.Add(1)
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Session describes a connected client for monitoring.
type Session struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	Delivered   int64     `json:"delivered"`
}

type event struct {
	client *Client
	join   bool
}

// Hub tracks live sessions. Register and Unregister share one queue drained
// by Run, so a session's leave is never applied before its join. Closing the
// context closes every session's Send channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	events chan event
	done   chan struct{}

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		events:  make(chan event, 32),
		done:    make(chan struct{}),
		logger:  logger.With("component", "hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case ev := <-h.events:
			if ev.join {
				h.addClient(ev.client)
			} else {
				h.removeClient(ev.client)
			}
		}
	}
}

// Register adds a session. Once the hub has stopped the client is closed
// straight away.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		client.close()
		return
	default:
	}
	select {
	case h.events <- event{client: client, join: true}:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.events <- event{client: client}:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sessions lists connected clients, oldest first.
func (h *Hub) Sessions() []Session {
	h.mu.RLock()
	out := make([]Session, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, Session{ID: c.ID, ConnectedAt: c.ConnectedAt, Delivered: c.Delivered()})
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return out
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client registered", "client_id", client.ID, "total", total)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.close()
	h.logger.Debug("client unregistered",
		"client_id", client.ID,
		"delivered", client.Delivered(),
		"total", len(h.clients),
	)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]struct{})
}
