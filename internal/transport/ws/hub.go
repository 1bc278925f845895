package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Hub tracks the live client of every connected user. A user holds at most
// one client; registering again supersedes the previous one.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	drained bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		log:     log.Named("hub"),
	}
}

// Register moves the client to the open state and makes it the user's
// target for Send. A previous client of the same user is closed. A client
// that was closed before registering is ignored; after Shutdown every new
// client is closed right away.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.drained {
		h.mu.Unlock()
		c.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if !c.state.CompareAndSwap(int32(stateConnecting), int32(stateOpen)) {
		h.mu.Unlock()
		return
	}
	prev := h.clients[c.userID]
	h.clients[c.userID] = c
	total := len(h.clients)
	h.mu.Unlock()

	if prev != nil && prev != c {
		prev.Close(websocket.StatusPolicyViolation, "superseded")
		h.log.Info("client superseded", zap.Stringer("user_id", c.userID))
	}
	h.log.Debug("user connected", zap.Stringer("user_id", c.userID), zap.Int("total", total))
}

// Unregister removes whatever client the user has. No-op when absent.
func (h *Hub) Unregister(userID uuid.UUID) {
	h.mu.Lock()
	c, ok := h.clients[userID]
	delete(h.clients, userID)
	h.mu.Unlock()

	if ok {
		c.setState(stateClosed)
	}
}

// Release removes c only if it is still the user's registered client, so a
// superseded client tearing down never evicts its replacement.
func (h *Hub) Release(c *Client) {
	h.mu.Lock()
	if h.clients[c.userID] == c {
		delete(h.clients, c.userID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.setState(stateClosed)
	h.log.Debug("user disconnected", zap.Stringer("user_id", c.userID), zap.Int("total", total))
}

// Send serializes event and queues it on the user's client. It reports
// whether the write was attempted; offline users, closed clients and full
// buffers all drop the event.
func (h *Hub) Send(userID uuid.UUID, event any) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok || !c.IsOpen() {
		return false
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal event", zap.Stringer("user_id", userID), zap.Error(err))
		return false
	}

	if !c.enqueue(data) {
		h.log.Warn("send buffer full, event dropped", zap.Stringer("user_id", userID))
		return false
	}
	return true
}

// Online reports whether the user has a registered client.
func (h *Hub) Online(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client with StatusGoingAway, empties the hub and
// refuses later registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.drained = true
	clients := h.clients
	h.clients = make(map[uuid.UUID]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.log.Info("hub drained", zap.Int("clients", len(clients)))
}
