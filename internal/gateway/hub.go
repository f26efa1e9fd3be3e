package gateway

import "sync"

// Hub tracks which connections are subscribed to each room's broadcast
// group. All methods are safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Subscribe adds the client to the room's broadcast group.
func (h *Hub) Subscribe(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[roomID]
	if !ok {
		group = make(map[*Client]struct{})
		h.rooms[roomID] = group
	}
	group[c] = struct{}{}
}

// Unsubscribe removes the client from the room's broadcast group. Empty
// groups are deleted.
func (h *Hub) Unsubscribe(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast sends msg to every connection in the room except exclude
// (which may be nil to reach everyone).
func (h *Hub) Broadcast(roomID string, msg message, exclude *Client) {
	for _, c := range h.members(roomID) {
		if c == exclude {
			continue
		}
		c.trySend(msg)
	}
}

// ForEach invokes fn for every connection in the room. Used when each
// recipient gets an individually projected payload.
func (h *Hub) ForEach(roomID string, fn func(c *Client)) {
	for _, c := range h.members(roomID) {
		fn(c)
	}
}

// GroupSize returns the number of connections subscribed to the room.
func (h *Hub) GroupSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// members snapshots the room's group so sends happen outside the lock.
func (h *Hub) members(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group := h.rooms[roomID]
	out := make([]*Client, 0, len(group))
	for c := range group {
		out = append(out, c)
	}
	return out
}
