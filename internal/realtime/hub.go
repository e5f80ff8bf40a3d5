package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// subscriberBuffer bounds how far a subscriber may fall behind before events
// are dropped for it. Delivery is best-effort; clients reconcile by
// re-fetching auction state.
const subscriberBuffer = 64

// Hub is the in-process fanout: a set of subscriber channels keyed by auction
// id. Publishing never blocks on a slow or disconnected subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[string]chan Event),
	}
}

// Subscribe registers a client on an auction's channel and returns the event
// stream. The channel is closed by Unsubscribe.
func (h *Hub) Subscribe(auctionID, clientID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[auctionID]
	if !ok {
		subs = make(map[string]chan Event)
		h.subscribers[auctionID] = subs
	}

	// A re-subscribe with the same client id replaces the old stream.
	if old, ok := subs[clientID]; ok {
		close(old)
	}

	ch := make(chan Event, subscriberBuffer)
	subs[clientID] = ch
	return ch
}

// Unsubscribe removes a client from an auction's channel. Mandatory on
// disconnect so subscriber maps don't grow without bound.
func (h *Hub) Unsubscribe(auctionID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[auctionID]
	if !ok {
		return
	}
	ch, ok := subs[clientID]
	if !ok {
		return
	}

	close(ch)
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(h.subscribers, auctionID)
	}
}

// Publish validates the event and delivers it to every subscriber of its
// auction, and only those. Full subscriber buffers drop the event for that
// subscriber rather than blocking the caller.
func (h *Hub) Publish(event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, ch := range h.subscribers[event.AuctionID] {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}

	if dropped > 0 {
		log.Debug().
			Str("auction_id", event.AuctionID).
			Str("event_type", string(event.Type)).
			Int("dropped", dropped).
			Msg("dropped event for slow subscribers")
	}

	return nil
}

// SubscriberCount reports how many clients are on an auction's channel.
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[auctionID])
}
