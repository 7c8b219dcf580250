package ws

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

type Conn interface {
	ID() string
	Send(msg Message) error
}

// Hub tracks which connections currently receive a room's broadcasts.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[roomID]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[roomID] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[roomID]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Detach forgets the room entirely and returns the connections it had.
func (h *Hub) Detach(roomID string) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs := h.rooms[roomID]
	delete(h.rooms, roomID)
	return lo.Keys(rs)
}

func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast delivers msg to every connection in the room, best-effort.
func (h *Hub) Broadcast(roomID string, msg Message) {
	h.mu.RLock()
	conns := lo.Keys(h.rooms[roomID])
	h.mu.RUnlock()

	send(conns, msg)
}

func send(conns []Conn, msg Message) {
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			slog.Debug("ws broadcast skipped", "conn", c.ID(), "type", msg.Type, "err", err)
		}
	}
}
