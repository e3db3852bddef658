package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// pushEvent is the invalidation signal sent over the push channel. The
// server never pushes content, only the fact that something changed.
type pushEvent struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId,omitempty"`
	File      string `json:"file,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func reloadEvent(file string) pushEvent {
	return pushEvent{
		Type:      "reload",
		File:      file,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// broadcastHub holds the currently connected push clients. Registrations
// live exactly as long as the connection; there is no replay buffer, so a
// client that connects after an event fired must re-fetch state itself.
type broadcastHub struct {
	mu        sync.Mutex
	clients   map[string]chan pushEvent
	closed    bool
	heartbeat time.Duration
}

func newBroadcastHub() *broadcastHub {
	return &broadcastHub{
		clients:   make(map[string]chan pushEvent),
		heartbeat: 10 * time.Second,
	}
}

// register adds a client and returns its id and event channel. The channel
// arrives pre-seeded with the "connected" acknowledgment.
func (h *broadcastHub) register() (string, <-chan pushEvent) {
	id := uuid.NewString()
	ch := make(chan pushEvent, 16)
	ch <- pushEvent{Type: "connected", ClientID: id}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.clients[id] = ch
	return id, ch
}

func (h *broadcastHub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// broadcast fans the event out to every registered client. Delivery is fire
// and forget: a client whose buffer is full misses the event and is expected
// to catch up from a later one or a re-fetch.
func (h *broadcastHub) broadcast(event pushEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *broadcastHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll closes every client channel and refuses further registrations.
// Called once at shutdown.
func (h *broadcastHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}
