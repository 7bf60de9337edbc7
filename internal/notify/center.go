package notify

import (
	"encoding/json"
	"sync"

	"chifoumi/internal/domain"
	"chifoumi/internal/logger"
)

// Subscriber is one live listener awaiting events for one match. The
// center owns the registration; the sink channel is owned by the
// transport that created it and is never closed by the center.
type Subscriber struct {
	ClientID int64
	MatchID  int64
	sink     chan<- []byte
}

// Center keeps the per-match registry of live subscribers and fans
// published events out to them. Single-process only.
type Center struct {
	mu   sync.RWMutex
	subs map[int64]map[int64]*Subscriber // matchID -> clientID -> subscriber
}

func NewCenter() *Center {
	return &Center{
		subs: make(map[int64]map[int64]*Subscriber),
	}
}

// Subscribe registers a sink for a match. Idempotent per client: a
// re-subscribe for the same match replaces the previous sink.
func (c *Center) Subscribe(clientID, matchID int64, sink chan<- []byte) *Subscriber {
	sub := &Subscriber{ClientID: clientID, MatchID: matchID, sink: sink}

	c.mu.Lock()
	defer c.mu.Unlock()

	byClient, ok := c.subs[matchID]
	if !ok {
		byClient = make(map[int64]*Subscriber)
		c.subs[matchID] = byClient
	}
	if _, replaced := byClient[clientID]; !replaced {
		Subscribers.Inc()
	}
	byClient[clientID] = sub

	logger.Debug("notify: subscribed", "client_id", clientID, "match_id", matchID)
	return sub
}

// Unsubscribe removes a registration. Calling it twice, or with a
// subscriber that was already replaced or pruned, is a no-op.
func (c *Center) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(sub)
}

func (c *Center) removeLocked(sub *Subscriber) {
	byClient, ok := c.subs[sub.MatchID]
	if !ok {
		return
	}
	// only remove if this exact registration is still current
	if current, ok := byClient[sub.ClientID]; !ok || current != sub {
		return
	}

	delete(byClient, sub.ClientID)
	if len(byClient) == 0 {
		delete(c.subs, sub.MatchID)
	}
	Subscribers.Dec()

	logger.Debug("notify: unsubscribed", "client_id", sub.ClientID, "match_id", sub.MatchID)
}

// Publish delivers the event to every subscriber of the event's match.
// It never blocks on a slow sink and never fails the caller: a sink that
// cannot accept the event is dropped from the registry and the delivery
// failure is only logged.
func (c *Center) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("notify: marshal event failed", "type", ev.Type, "error", err)
		return
	}

	EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs[ev.MatchID] {
		select {
		case sub.sink <- data:
			Deliveries.Inc()
		default:
			// sink full or abandoned; drop the subscriber, keep going
			logger.Warn("notify: dropping unresponsive subscriber",
				"client_id", sub.ClientID, "match_id", sub.MatchID, "type", ev.Type)
			c.removeLocked(sub)
			DroppedSubscribers.Inc()
		}
	}
}

// SubscriberCount returns the number of live subscribers for a match.
func (c *Center) SubscriberCount(matchID int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs[matchID])
}
