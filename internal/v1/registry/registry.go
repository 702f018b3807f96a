// Package registry holds the in-memory session state: which peers are
// connected, which rooms exist, and which socket owns which room. All state
// lives behind one mutex; no operation performs I/O while holding it beyond
// non-blocking outbox enqueues.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/metrics"
	"github.com/shareview/signaller/internal/v1/protocol"
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room does not exist")
	ErrPeerExists   = errors.New("peer id already in use")
	ErrPeerNotFound = errors.New("peer does not exist")
	ErrSourceBusy   = errors.New("connection already owns a session")
)

// Registry maps peers and sessions, kept in lockstep:
// every session has a sharer peer keyed by its room id, every viewer peer
// appears in exactly one session's viewer set, and the source index holds
// exactly one entry per session.
type Registry struct {
	mu          sync.Mutex
	peers       map[string]*Peer
	sessions    map[string]*Session
	sourceIndex map[string]string // sharer remote addr -> room
	clock       clock.Clock
}

// New creates an empty registry using the wall clock.
func New() *Registry {
	return NewWithClock(clock.New())
}

// NewWithClock creates an empty registry with an injectable clock so tests
// can assert session durations.
func NewWithClock(c clock.Clock) *Registry {
	return &Registry{
		peers:       make(map[string]*Peer),
		sessions:    make(map[string]*Session),
		sourceIndex: make(map[string]string),
		clock:       c,
	}
}

// AddSharer creates a session for room and registers the sharer peer under
// the same key. sourceAddr is the sharer's remote socket address; it is
// indexed so a dropped socket can tear the session down. One socket owns at
// most one session: a second start from the same address is rejected, since
// indexing it would orphan the first session's disconnect teardown.
func (r *Registry) AddSharer(room string, sender Outbox, sourceAddr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[room]; ok {
		return ErrRoomExists
	}
	if _, ok := r.peers[room]; ok {
		// A viewer already claimed this id; creating the sharer would orphan it.
		return ErrPeerExists
	}
	if _, ok := r.sourceIndex[sourceAddr]; ok {
		return ErrSourceBusy
	}

	r.sessions[room] = newSession(room, sourceAddr, r.clock.Now())
	r.peers[room] = &Peer{ID: room, Room: room, Role: RoleSharer, Sender: sender}
	r.sourceIndex[sourceAddr] = room

	metrics.NumOngoingSessions.Inc()
	return nil
}

// AddViewer registers a viewer peer in an existing room. A peer id that is
// already taken is rejected so the caller can decline the join with a reason.
func (r *Registry) AddViewer(id, room string, sender Outbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[room]
	if !ok {
		return ErrRoomNotFound
	}
	if _, ok := r.peers[id]; ok {
		return ErrPeerExists
	}

	session.Viewers.Insert(id)
	r.peers[id] = &Peer{ID: id, Room: room, Role: RoleViewer, Sender: sender}
	return nil
}

// Leave removes a peer. If id keys a session the whole session is torn down
// (viewers are notified with room_closed); otherwise only the viewer peer is
// removed from its session.
func (r *Registry) Leave(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		r.removeSessionLocked(id)
		return nil
	}

	peer, ok := r.peers[id]
	if !ok {
		return ErrPeerNotFound
	}
	if session, ok := r.sessions[peer.Room]; ok {
		session.Viewers.Delete(id)
	}
	delete(r.peers, id)
	return nil
}

// OnDisconnect tears down the session owned by sourceAddr, if any. This is
// the only path that closes a room whose sharer vanished without a leave.
// Viewer disconnects are not keyed here; a viewer that drops silently stays
// registered until its session closes.
func (r *Registry) OnDisconnect(sourceAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.sourceIndex[sourceAddr]
	if !ok {
		return
	}
	logging.Info(context.Background(), "sharer socket dropped, closing room",
		zap.String("room", room), zap.String("source", sourceAddr))
	r.removeSessionLocked(room)
}

// RoomOf returns the room a peer belongs to.
func (r *Registry) RoomOf(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[id]
	if !ok {
		return "", ErrPeerNotFound
	}
	return peer.Room, nil
}

// HasRoom reports whether room keys an active session.
func (r *Registry) HasRoom(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[room]
	return ok
}

// Forward enqueues raw on the target peer's outbox. The payload is passed
// through byte-for-byte; the registry never re-encodes it.
func (r *Registry) Forward(to string, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[to]
	if !ok {
		return ErrPeerNotFound
	}
	return peer.Sender.Send(raw)
}

// ForwardToViewers enqueues raw on every viewer outbox of room. Individual
// enqueue failures are logged and skipped.
func (r *Registry) ForwardToViewers(room string, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[room]
	if !ok {
		return ErrRoomNotFound
	}
	for _, viewer := range session.Viewers.UnsortedList() {
		peer, ok := r.peers[viewer]
		if !ok {
			continue
		}
		if err := peer.Sender.Send(raw); err != nil {
			logging.Warn(context.Background(), "failed to forward to viewer",
				zap.String("viewer", viewer), zap.String("room", room), zap.Error(err))
		}
	}
	return nil
}

// Stats returns the current peer and session counts.
func (r *Registry) Stats() (peers, sessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers), len(r.sessions)
}

// CloseAllSessions tears down every session, notifying all viewers. Used on
// graceful shutdown.
func (r *Registry) CloseAllSessions() {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.sessions))
	for room := range r.sessions {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.removeSessionLocked(room)
	}
}

// removeSessionLocked destroys a session: records its duration, notifies
// every viewer with room_closed, then drops viewers, the source index entry,
// the sharer peer and the session itself. Callers must hold r.mu.
//
// room_closed is enqueued before the viewer peer is removed so the message
// always lands on a live outbox.
func (r *Registry) removeSessionLocked(room string) {
	session, ok := r.sessions[room]
	if !ok {
		return
	}

	metrics.SessionDurationSec.Observe(r.clock.Since(session.StartedAt).Seconds())
	metrics.NumOngoingSessions.Dec()

	for _, viewer := range session.Viewers.UnsortedList() {
		peer, ok := r.peers[viewer]
		if !ok {
			continue
		}
		if payload, err := protocol.EncodeRoomClosed(viewer, room); err == nil {
			if err := peer.Sender.Send(payload); err != nil {
				// The viewer is going away anyway.
				logging.Warn(context.Background(), "failed to notify viewer of room close",
					zap.String("viewer", viewer), zap.String("room", room), zap.Error(err))
			}
		}
		delete(r.peers, viewer)
	}

	delete(r.sourceIndex, session.SharerSource)
	delete(r.peers, session.SharerPeerID)
	delete(r.sessions, room)

	logging.Info(context.Background(), "session closed", zap.String("room", room))
}
