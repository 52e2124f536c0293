// Package realtime pushes team board changes to connected browsers over
// WebSocket. Events go through a Redis channel so every server instance
// delivers them to its own clients.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Publisher sends a board event to every instance.
type Publisher interface {
	Publish(ctx context.Context, event string, payload []byte) error
}

// Subscriber delivers board events published by any instance.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub tracks the connected board clients of this instance.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     Publisher
	unsub   func()
}

// NewHub creates a hub. With a nil publisher events are delivered locally only.
func NewHub(logger *zap.Logger, pub Publisher) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger, pub: pub}
}

// Start subscribes to events from all instances and broadcasts them locally.
func (h *Hub) Start(ctx context.Context, sub Subscriber) error {
	cancel, err := sub.Subscribe(ctx, func(event string, payload []byte) {
		h.Broadcast(event, payload)
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.unsub = cancel
	h.mu.Unlock()
	return nil
}

// Close stops the subscription started by Start.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsub != nil {
		h.unsub()
		h.unsub = nil
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("board client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("board client disconnected", zap.String("client_id", c.ID))
}

// ClientCount returns the number of clients connected to this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an already encoded event to the local clients. Clients whose
// buffer is full miss the event.
func (h *Hub) Broadcast(event string, payload []byte) {
	msg := WSMessage{Event: event, Data: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("board client lagging, event dropped", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}

// Notify publishes a board event. With a publisher the subscription performs
// the local broadcast, so clients of this instance get it exactly once.
func (h *Hub) Notify(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode board event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if h.pub != nil {
		err := h.pub.Publish(ctx, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("publish board event failed, delivering locally", zap.String("event", event), zap.Error(err))
	}
	h.Broadcast(event, data)
}
