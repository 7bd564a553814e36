package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Event is a real-time sync notification pushed to connected clients.
type Event struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewEvent creates an Event with the Type field derived from entity and action,
// e.g. "list_updated" or "purchase_created".
func NewEvent(entity, action string, id int64, extra map[string]any) Event {
	return Event{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub maintains the set of active WebSocket clients and routes events to the
// users allowed to see them. A user may hold several connections at once.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Notify delivers an event to every connection belonging to one of the given
// users. Slow clients with a full buffer are skipped rather than blocked on.
func (h *Hub) Notify(evt Event, userIDs ...int64) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	targets := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		targets[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if _, ok := targets[c.userID]; !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
