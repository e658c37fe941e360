package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	broker := NewBroker(nil)

	a, cancelA := broker.Subscribe()
	b, cancelB := broker.Subscribe()
	defer cancelA()
	defer cancelB()

	broker.Publish(TypeProfilesUpdated, map[string]any{"profileId": int64(7), "action": "submit_rating"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case event := <-ch:
			assert.Equal(t, TypeProfilesUpdated, event.Type)
			assert.Equal(t, "submit_rating", event.Payload["action"])
			assert.NotEmpty(t, event.ID)
			assert.NotEmpty(t, event.Timestamp)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker(nil)

	_, cancel := broker.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the subscriber buffer; Publish must never stall.
		for i := 0; i < subscriberBuffer*3; i++ {
			broker.Publish(TypeAdminCatalogUpdated, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := NewBroker(nil)

	ch, cancel := broker.Subscribe()
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Equal(t, 0, broker.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel is a no-op, and cancel is idempotent.
	broker.Publish(TypeProfilesUpdated, nil)
	cancel()
}
