// Package events provides an in-process broadcast broker for change
// notifications. Mutating operations publish fire-and-forget; delivery to
// any one subscriber never blocks the publisher.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published by the profile service.
const (
	TypeProfilesUpdated      = "profiles_updated"
	TypeAdminCatalogUpdated  = "admin_catalog_updated"
	TypeAdminSettingsUpdated = "admin_settings_updated"
)

const subscriberBuffer = 16

// Event is one change notification.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Broker fans events out to subscribers over buffered channels. A
// subscriber that falls behind loses events rather than stalling writers;
// the change feed is a wake-up signal, not a durable log.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]chan Event
	logger *zap.Logger
}

func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subs:   make(map[string]chan Event),
		logger: logger.Named("events"),
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away; it closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", zap.String("subscriber", id), zap.Int("total", count))

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
		b.logger.Debug("subscriber removed", zap.String("subscriber", id))
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber without blocking.
func (b *Broker) Publish(eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				zap.String("subscriber", id),
				zap.String("type", eventType))
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
