package signalling

import (
	"context"
	"errors"
	"sync"

	"github.com/shareview/signaller/internal/v1/protocol"
)

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
		return errors.New("outbox closed")
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

func (m *mockOutbox) Strings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = string(msg)
	}
	return out
}

// stubBroker implements IceBroker with canned results.
type stubBroker struct {
	servers []protocol.IceServer
	err     error
	calls   int
}

func (b *stubBroker) ICEServers(_ context.Context) ([]protocol.IceServer, error) {
	b.calls++
	return b.servers, b.err
}
