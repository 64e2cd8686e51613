package http

import (
	"encoding/json"
	"sync"

	"github.com/Legit-prep/live-quiz-socket/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 64

type outboundMessage[T any] struct {
	Event string `json:"event"`
	Data  T      `json:"data"`
}

// client is one registered connection. send is closed by the hub on
// unregister, which stops the write pump.
type client struct {
	id    string
	send  chan []byte
	rooms map[string]struct{}
}

// Hub tracks connections and the rooms (pins) they belong to. It implements
// app.Gateway: sends never block, a connection whose buffer is full is
// dropped.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
	rooms map[string]map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*client),
		rooms: make(map[string]map[string]*client),
	}
}

// Register adds a connection and returns the channel its writer drains.
func (h *Hub) Register(id string) <-chan []byte {
	c := &client{
		id:    id,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	telemetry.ActiveConnections.Inc()
	return c.send
}

// Unregister removes the connection from every room. Safe to call twice.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[id]
	if !ok {
		return
	}
	delete(h.conns, id)
	for pin := range c.rooms {
		members := h.rooms[pin]
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, pin)
		}
	}
	close(c.send)
	telemetry.ActiveConnections.Dec()
}

func (h *Hub) JoinRoom(connID, pin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	c.rooms[pin] = struct{}{}
	members, ok := h.rooms[pin]
	if !ok {
		members = make(map[string]*client)
		h.rooms[pin] = members
	}
	members[connID] = c
}

// RoomSize returns the number of connections in the room.
func (h *Hub) RoomSize(pin string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pin])
}

func (h *Hub) Send(connID, event string, payload any) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		telemetry.DroppedMessages.Inc()
		log.Debug().Str("conn", connID).Str("event", event).Msg("hub: recipient gone, message dropped")
		return
	}
	h.enqueueLocked(c, event, data)
}

func (h *Hub) Broadcast(pin, event string, payload any) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[pin] {
		h.enqueueLocked(c, event, data)
	}
}

// enqueueLocked must run under at least the read lock so it never races
// with close(c.send) in Unregister.
func (h *Hub) enqueueLocked(c *client, event string, data []byte) {
	select {
	case c.send <- data:
	default:
		telemetry.DroppedMessages.Inc()
		log.Warn().Str("conn", c.id).Str("event", event).Msg("hub: send buffer full, disconnecting client")
		go h.Unregister(c.id)
	}
}

func encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(outboundMessage[any]{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("hub: marshal outbound message")
		return nil, false
	}
	return data, true
}
