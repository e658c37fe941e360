package mocks

import "sync"

// PublishedEvent records one Publish call.
type PublishedEvent struct {
	Type    string
	Payload map[string]any
}

// MockPublisher is a recording implementation of the service Publisher
// interface for tests.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// Publish implements the Publisher interface.
func (m *MockPublisher) Publish(eventType string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Type: eventType, Payload: payload})
}

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Last returns the most recent event, or a zero value when none exist.
func (m *MockPublisher) Last() PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return PublishedEvent{}
	}
	return m.events[len(m.events)-1]
}
