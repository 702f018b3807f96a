package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/shareview/signaller/internal/v1/registry"
)

type frame struct {
	messageType int
	data        []byte
}

// MockConnection implements wsConnection with scripted inbound frames.
type MockConnection struct {
	reads     chan frame
	mu        sync.Mutex
	writes    []frame
	closeOnce sync.Once
	closed    chan struct{}
	remote    net.Addr
}

func newMockConnection(remote string) *MockConnection {
	addr, _ := net.ResolveTCPAddr("tcp", remote)
	return &MockConnection{
		reads:  make(chan frame, 16),
		closed: make(chan struct{}),
		remote: addr,
	}
}

func (m *MockConnection) queue(messageType int, data []byte) {
	m.reads <- frame{messageType: messageType, data: data}
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	select {
	case f := <-m.reads:
		return f.messageType, f.data, nil
	case <-m.closed:
		return 0, nil, net.ErrClosed
	}
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, frame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (m *MockConnection) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *MockConnection) SetWriteDeadline(_ time.Time) error { return nil }

func (m *MockConnection) RemoteAddr() net.Addr { return m.remote }

func (m *MockConnection) Writes() []frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame, len(m.writes))
	copy(out, m.writes)
	return out
}

// recordingHandler captures Dispatch calls.
type recordingHandler struct {
	mu    sync.Mutex
	calls []dispatchCall
}

type dispatchCall struct {
	raw        string
	sourceAddr string
}

func (h *recordingHandler) Dispatch(_ context.Context, _ registry.Outbox, raw []byte, sourceAddr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, dispatchCall{raw: string(raw), sourceAddr: sourceAddr})
}

func (h *recordingHandler) Calls() []dispatchCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]dispatchCall, len(h.calls))
	copy(out, h.calls)
	return out
}
