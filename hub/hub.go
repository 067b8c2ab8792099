// Package hub provides session-scoped fan-out of progress events to
// live observers.
package hub

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/PranavReddyGaddam/Signal/domain"
)

// Subscriber is one live observer of a session's events.
type Subscriber struct {
	ID        string
	SessionID string

	send   chan domain.Event
	closed bool // guarded by the owning group's mutex
}

// Events returns the subscriber's delivery channel. The channel is
// closed when the subscriber is unsubscribed or dropped.
func (s *Subscriber) Events() <-chan domain.Event {
	return s.send
}

// group holds the subscribers of a single session behind its own lock,
// so publishing to one session never contends with another.
type group struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

// Hub manages all session subscriptions. The registry is process-local
// and rebuilt empty on restart; reconnecting clients re-subscribe.
type Hub struct {
	mu         sync.RWMutex
	groups     map[string]*group
	bufferSize int
}

// NewHub creates a new Hub with the given per-subscriber buffer size.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		groups:     make(map[string]*group),
		bufferSize: bufferSize,
	}
}

// Subscribe registers an observer for a session and immediately delivers
// a synthetic connection_established event.
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		ID:        "sub_" + uuid.New().String()[:8],
		SessionID: sessionID,
		send:      make(chan domain.Event, h.bufferSize),
	}

	// The subscriber is added while holding the registry lock so a
	// concurrent empty-group cleanup cannot orphan it.
	h.mu.Lock()
	g, ok := h.groups[sessionID]
	if !ok {
		g = &group{subs: make(map[string]*Subscriber)}
		h.groups[sessionID] = g
	}
	g.mu.Lock()
	g.subs[sub.ID] = sub
	g.mu.Unlock()
	h.mu.Unlock()

	sub.send <- domain.NewConnectionEstablished(sessionID)
	return sub
}

// Publish delivers an event to every subscriber of the session, in
// publish order. A subscriber whose buffer is full is dropped and its
// channel closed; delivery to the remaining subscribers continues and
// the publisher never blocks.
func (h *Hub) Publish(sessionID string, event domain.Event) {
	h.mu.RLock()
	g, ok := h.groups[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	for id, sub := range g.subs {
		select {
		case sub.send <- event:
		default:
			log.Printf("hub: subscriber %s buffer full, dropping", id)
			delete(g.subs, id)
			sub.closed = true
			close(sub.send)
		}
	}
	g.mu.Unlock()
}

// Unsubscribe removes the subscriber and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.RLock()
	g, ok := h.groups[sub.SessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	if !sub.closed {
		delete(g.subs, sub.ID)
		sub.closed = true
		close(sub.send)
	}
	empty := len(g.subs) == 0
	g.mu.Unlock()

	if empty {
		h.mu.Lock()
		// Re-check under the write lock; a new subscriber may have
		// joined the group in the meantime.
		g.mu.Lock()
		if len(g.subs) == 0 {
			delete(h.groups, sub.SessionID)
		}
		g.mu.Unlock()
		h.mu.Unlock()
	}
}

// SubscriberCount returns the number of live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	g, ok := h.groups[sessionID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}
