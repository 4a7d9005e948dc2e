// Package websocket fans cache changes out to connected console views.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// TypeHello is the first message on every connection. Its Seq is the last
// change sequence the view can assume it has already seen.
const TypeHello = "hello"

// Message is a cache change notification. Seq increases by one per broadcast;
// a view that sees a gap has missed changes and should refetch state.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity,omitempty"`
	Action string         `json:"action,omitempty"`
	ID     string         `json:"id,omitempty"`
	Seq    uint64         `json:"seq"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected views and broadcasts change messages to the ones
// subscribed to the message's entity.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	seq     uint64
	dropped atomic.Uint64
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Unregistering twice
// is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast stamps msg with the next sequence number and queues it for every
// subscribed client. Clients whose buffer is full miss the message and will
// see a sequence gap.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	msg.Seq = h.seq
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	for c := range h.clients {
		if !c.wants(msg.Entity) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn("client too slow, change dropped", "client_id", c.id, "seq", msg.Seq)
		}
	}
}

// Seq returns the sequence number of the last broadcast.
func (h *Hub) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Dropped returns how many per-client deliveries were skipped because a
// client's buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// hello registers c and queues its hello message under the same lock, so the
// hello's Seq is exactly the last change the client did not receive.
func (h *Hub) hello(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, err := json.Marshal(Message{Type: TypeHello, Seq: h.seq})
	if err != nil {
		return err
	}
	h.clients[c] = struct{}{}
	c.send <- data
	return nil
}
