package notification

import "sync"

// MockNotifier records messages instead of delivering them. Intended for tests.
type MockNotifier struct {
	mu   sync.Mutex
	sent []Message

	// SendError, when set, is returned by Send.
	SendError error
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records the message
func (m *MockNotifier) Send(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of all recorded messages
func (m *MockNotifier) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
