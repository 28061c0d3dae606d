package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/easyorder/api/internal/realtime"
	"go.uber.org/zap"
)

// Message types exchanged with terminals.
const (
	TypeInvalidate = "invalidate"
	TypeResync     = "resync"
)

// ReasonConnect marks the invalidates a terminal receives on connect.
const ReasonConnect = "connect"

// Message is the only frame shape on the wire. Server frames are always
// invalidates; the only client frame is a resync request.
type Message struct {
	Type   string `json:"type"`
	Topic  string `json:"topic,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Hub maintains the connected terminals, grouped into rooms by topic, and
// forwards bridge signals to them.
type Hub struct {
	bridge *realtime.Bridge
	logger *zap.Logger

	// Registered clients by topic
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	resync     chan *Client
	done       chan struct{}

	// Guards rooms for readers outside Run
	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub(bridge *realtime.Bridge, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bridge:     bridge,
		logger:     logger.Named("ws"),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		resync:     make(chan *Client, 16),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bridge.Subscribe()
	defer sub.Unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.add(client)
			h.greet(client, ReasonConnect)

		case client := <-h.unregister:
			h.remove(client)

		case client := <-h.resync:
			h.greet(client, realtime.ReasonResync)

		case sig, ok := <-sub.C:
			if !ok {
				h.closeAll()
				return
			}
			h.deliver(sig)
		}
	}
}

// ClientCount returns the number of connected terminals.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Client]struct{})
	for _, clients := range h.rooms {
		for c := range clients {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range c.topics {
		if h.rooms[t] == nil {
			h.rooms[t] = make(map[*Client]bool)
		}
		h.rooms[t][c] = true
	}
	h.logger.Debug("client connected",
		zap.Stringer("user_id", c.userID), zap.String("role", c.role), zap.Strings("topics", c.topics))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked removes c from every room and closes its send channel once.
func (h *Hub) dropLocked(c *Client) {
	registered := false
	for _, t := range c.topics {
		if clients, ok := h.rooms[t]; ok && clients[c] {
			registered = true
			delete(clients, c)
			// Clean up empty rooms
			if len(clients) == 0 {
				delete(h.rooms, t)
			}
		}
	}
	if registered {
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for c := range clients {
			h.dropLocked(c)
		}
	}
}

// greet sends one invalidate per subscribed topic to a single client.
func (h *Hub) greet(c *Client, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range c.topics {
		if !h.rooms[t][c] {
			return
		}
		h.sendLocked(c, Message{Type: TypeInvalidate, Topic: t, Reason: reason})
	}
}

func (h *Hub) deliver(sig realtime.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := Message{Type: TypeInvalidate, Topic: sig.Topic, Reason: sig.Reason}
	for c := range h.rooms[sig.Topic] {
		h.sendLocked(c, msg)
	}
}

// sendLocked queues msg for c. A client whose buffer is full is dropped;
// it will resync when it reconnects.
func (h *Hub) sendLocked(c *Client, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
		h.logger.Warn("client too slow, dropping", zap.Stringer("user_id", c.userID))
		h.dropLocked(c)
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// RequestResync asks for fresh invalidates of every topic c follows.
func (h *Hub) RequestResync(c *Client) {
	select {
	case h.resync <- c:
	case <-h.done:
	}
}
