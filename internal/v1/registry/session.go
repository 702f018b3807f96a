package registry

import (
	"time"

	"k8s.io/utils/set"
)

// Session is the per-room aggregate. It exists exactly as long as its
// sharer's peer does.
type Session struct {
	Room         string
	SharerPeerID string
	Viewers      set.Set[string]
	StartedAt    time.Time

	// SharerSource is the sharer's remote socket address, used to tear the
	// session down when the socket drops without a leave message. Keyed by
	// the full address including the ephemeral port; behind a reverse proxy
	// or NAT this can misidentify the sharer.
	SharerSource string
}

func newSession(room, source string, startedAt time.Time) *Session {
	return &Session{
		Room:         room,
		SharerPeerID: room,
		Viewers:      set.New[string](),
		StartedAt:    startedAt,
		SharerSource: source,
	}
}
