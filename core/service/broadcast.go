package service

import (
	"log"
	"sync"

	"beacon/core/models"
)

// subscriberBuffer is how many undelivered events a subscriber may
// accumulate before the hub starts dropping events for it.
const subscriberBuffer = 64

// EventHub fans broadcast events out to UI subscribers. Publish never
// blocks: a subscriber that stops draining its channel loses events
// rather than stalling the publisher.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[chan models.Event]struct{}
	closed      bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[chan models.Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its event channel.
// The caller must eventually pass the channel back to Unsubscribe.
func (h *EventHub) Subscribe() chan models.Event {
	ch := make(chan models.Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// with an already-removed channel.
func (h *EventHub) Unsubscribe(ch chan models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; !ok {
		return
	}
	delete(h.subscribers, ch)
	close(ch)
}

// Publish delivers an event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (h *EventHub) Publish(event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("Event hub: dropping %s event for slow subscriber", event.Type)
		}
	}
}

// SubscriberCount reports how many subscribers are connected.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close unsubscribes everyone. Further Publish calls are no-ops and
// further Subscribe calls return a closed channel.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
