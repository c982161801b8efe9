// ABOUTME: Per-connection outboxes and room fan-out for outbound events
// ABOUTME: Non-blocking delivery; slow connections drop events instead of stalling callers

package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/helpdesk-gateway/internal/metrics"
	"github.com/2389/helpdesk-gateway/internal/protocol"
)

const (
	// OutboxSize is the channel buffer for each connection.
	OutboxSize = 64

	// AdminRoom groups every joined admin connection.
	AdminRoom = "admins"
)

// ErrAlreadySubscribed indicates the connection already has an outbox.
var ErrAlreadySubscribed = errors.New("connection already subscribed")

// ErrClosed indicates the hub has been shut down.
var ErrClosed = errors.New("hub closed")

// Hub owns the outboxes and room memberships.
type Hub struct {
	mu     sync.RWMutex
	outbox map[string]chan *protocol.Event
	rooms  map[string]map[string]struct{}
	closed bool
	logger *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		outbox: make(map[string]chan *protocol.Event),
		rooms:  make(map[string]map[string]struct{}),
		logger: logger.With("component", "notify"),
	}
}

// Subscribe creates the outbox for connID. The outbox is closed by
// Unsubscribe, by ctx cancellation, or by Close.
func (h *Hub) Subscribe(ctx context.Context, connID string) (<-chan *protocol.Event, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := h.outbox[connID]; exists {
		h.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	ch := make(chan *protocol.Event, OutboxSize)
	h.outbox[connID] = ch
	h.mu.Unlock()

	h.logger.Debug("connection subscribed", "connection_id", connID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(connID)
	}()

	return ch, nil
}

// Unsubscribe closes the outbox and leaves every room.
func (h *Hub) Unsubscribe(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.outbox[connID]
	if !ok {
		return
	}
	delete(h.outbox, connID)
	close(ch)

	for room, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	h.logger.Debug("connection unsubscribed", "connection_id", connID)
}

// JoinRoom adds connID to room.
func (h *Hub) JoinRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.outbox[connID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

// LeaveRoom removes connID from room.
func (h *Hub) LeaveRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SendTo delivers ev to one connection. Unknown connections are ignored.
func (h *Hub) SendTo(connID string, ev *protocol.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if ch, ok := h.outbox[connID]; ok {
		h.deliver(connID, ch, ev)
	}
}

// Broadcast delivers ev to every member of room.
func (h *Hub) Broadcast(room string, ev *protocol.Event) {
	h.BroadcastExcept(room, ev, "")
}

// BroadcastExcept delivers ev to every member of room except skipConnID.
func (h *Hub) BroadcastExcept(room string, ev *protocol.Event, skipConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.rooms[room] {
		if connID == skipConnID {
			continue
		}
		if ch, ok := h.outbox[connID]; ok {
			h.deliver(connID, ch, ev)
		}
	}
}

// deliver must be called with at least the read lock held so the channel
// cannot be closed concurrently.
func (h *Hub) deliver(connID string, ch chan *protocol.Event, ev *protocol.Event) {
	select {
	case ch <- ev:
	default:
		metrics.EventsDropped.WithLabelValues(ev.Type).Inc()
		h.logger.Warn("dropped event for slow connection",
			"connection_id", connID,
			"type", ev.Type)
	}
}

// Close shuts down the hub and closes every outbox.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, ch := range h.outbox {
		close(ch)
		delete(h.outbox, connID)
	}
	clear(h.rooms)
	h.closed = true

	h.logger.Debug("hub closed")
}
