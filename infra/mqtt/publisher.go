package mqtt

import (
	"fmt"
	"sync"
)

// MockPublisher records published messages for tests.
type MockPublisher struct {
	mu       sync.Mutex
	messages []MockMessage
	FailAll  bool
}

// MockMessage is one recorded publish.
type MockMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the message or fails when configured to.
func (m *MockPublisher) Publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return fmt.Errorf("publish failed")
	}
	m.messages = append(m.messages, MockMessage{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

// Published returns a copy of the recorded messages.
func (m *MockPublisher) Published() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.messages...)
}
