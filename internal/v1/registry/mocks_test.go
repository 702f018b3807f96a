package registry

import (
	"errors"
	"sync"
)

var errOutboxClosed = errors.New("outbox closed")

// mockOutbox records every payload enqueued on it.
type mockOutbox struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (m *mockOutbox) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errOutboxClosed
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

func (m *mockOutbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockOutbox) Messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockOutbox) Strings() []string {
	msgs := m.Messages()
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = string(msg)
	}
	return out
}
