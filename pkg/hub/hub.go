package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

// DefaultHistory is how many events the hub remembers for late joiners.
const DefaultHistory = 500

// Hub maintains the set of active clients and broadcasts messages to them.
// It also keeps the most recent events so the HTTP API can list them.
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Guards clients for readers outside Run
	mu sync.RWMutex

	running atomic.Bool
	done    chan struct{}

	// Ring buffer of recent events
	historyMu sync.RWMutex
	history   []proctor.Event
	next      int
	full      bool
}

// New creates a new Hub remembering up to history events.
func New(name string, history int, logger *slog.Logger) *Hub {
	if history <= 0 {
		history = DefaultHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		history:    make([]proctor.Event, history),
	}
}

// Run starts the hub's main loop until ctx is cancelled. It must be
// called at most once.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.Send(message) {
					// Client's buffer is full - they're too slow
					client.close()
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "kind", msg.Kind)
	}
}

// Publish remembers ev and broadcasts it as a protocol event message.
func (h *Hub) Publish(ev proctor.Event) {
	h.remember(ev)

	msg, err := protocol.NewEventMessage(ev)
	if err != nil {
		h.logger.Warn("failed to encode event", "event", ev.ID, "error", err)
		return
	}
	out, err := Encode(msg)
	if err != nil {
		h.logger.Warn("failed to encode event", "event", ev.ID, "error", err)
		return
	}
	h.Broadcast(out)
}

func (h *Hub) remember(ev proctor.Event) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history[h.next] = ev
	h.next = (h.next + 1) % len(h.history)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to limit remembered events, oldest first.
// A limit of zero or less returns all of them.
func (h *Hub) Recent(limit int) []proctor.Event {
	h.historyMu.RLock()
	defer h.historyMu.RUnlock()

	var ordered []proctor.Event
	if h.full {
		ordered = append(ordered, h.history[h.next:]...)
	}
	ordered = append(ordered, h.history[:h.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
