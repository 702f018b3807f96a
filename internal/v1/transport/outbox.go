package transport

import (
	"container/list"
	"errors"
	"sync"
)

// ErrOutboxClosed is returned by Send once the owning connection has ended.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox is the unbounded FIFO queue between the dispatcher (any number of
// producers) and one connection's write pump (single consumer). Send never
// blocks; a slow socket grows the queue instead, which is acceptable for
// short-lived, small signalling envelopes.
type Outbox struct {
	mu     sync.Mutex
	items  *list.List
	wake   chan struct{}
	closed bool
}

// NewOutbox creates an empty open outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		items: list.New(),
		wake:  make(chan struct{}, 1),
	}
}

// Send enqueues a payload. It never blocks.
func (o *Outbox) Send(data []byte) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOutboxClosed
	}
	o.items.PushBack(data)
	o.mu.Unlock()

	o.signal()
	return nil
}

// Close rejects further sends and, once the queue drains, unblocks the
// consumer with ok=false.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.signal()
}

// Receive blocks until a payload is available, returning ok=false when the
// outbox is closed and fully drained. Single consumer only.
func (o *Outbox) Receive() ([]byte, bool) {
	for {
		o.mu.Lock()
		if front := o.items.Front(); front != nil {
			o.items.Remove(front)
			o.mu.Unlock()
			return front.Value.([]byte), true
		}
		closed := o.closed
		o.mu.Unlock()

		if closed {
			return nil, false
		}
		<-o.wake
	}
}

// Len reports the number of queued payloads.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items.Len()
}

func (o *Outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}
