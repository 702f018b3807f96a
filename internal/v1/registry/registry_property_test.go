package registry

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRandomOperationSequences drives the registry through arbitrary
// interleavings of start/join/leave/disconnect and asserts the structural
// invariants after every step.
func TestRandomOperationSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5EED))

	const (
		iterations   = 200
		opsPerRun    = 120
		idPoolSize   = 12
		roomPoolSize = 6
	)

	ids := make([]string, idPoolSize)
	for i := range ids {
		ids[i] = fmt.Sprintf("peer-%d", i)
	}
	rooms := make([]string, roomPoolSize)
	for i := range rooms {
		rooms[i] = fmt.Sprintf("ROOM%d", i)
	}

	for run := 0; run < iterations; run++ {
		r := New()
		sources := map[string]string{} // room -> source addr

		for op := 0; op < opsPerRun; op++ {
			switch rng.Intn(5) {
			case 0: // start
				room := rooms[rng.Intn(len(rooms))]
				var source string
				if len(sources) > 0 && rng.Intn(3) == 0 {
					// Reuse an address that already owns a session; the
					// source index must stay one-to-one with sessions.
					for _, s := range sources {
						source = s
						break
					}
				} else {
					source = fmt.Sprintf("10.0.0.%d:%d", rng.Intn(4), 40000+rng.Intn(100))
				}
				if err := r.AddSharer(room, &mockOutbox{}, source); err == nil {
					sources[room] = source
				}
			case 1: // join
				id := ids[rng.Intn(len(ids))]
				room := rooms[rng.Intn(len(rooms))]
				_ = r.AddViewer(id, room, &mockOutbox{})
			case 2: // leave (viewer or sharer id)
				var subject string
				if rng.Intn(2) == 0 {
					subject = ids[rng.Intn(len(ids))]
				} else {
					subject = rooms[rng.Intn(len(rooms))]
				}
				if err := r.Leave(subject); err == nil {
					delete(sources, subject)
				}
			case 3: // disconnect by source address
				room := rooms[rng.Intn(len(rooms))]
				if source, ok := sources[room]; ok && rng.Intn(2) == 0 {
					r.OnDisconnect(source)
					delete(sources, room)
				} else {
					r.OnDisconnect("10.99.99.99:1")
				}
			case 4: // lookups never mutate
				_, _ = r.RoomOf(ids[rng.Intn(len(ids))])
				_ = r.HasRoom(rooms[rng.Intn(len(rooms))])
			}

			checkInvariants(t, r)
		}
	}
}

// TestPeerIsSharerXorViewer checks that every registered peer is accounted
// for exactly once: either it keys a session or it sits in exactly one
// viewer set.
func TestPeerIsSharerXorViewer(t *testing.T) {
	r := New()
	require.NoError(t, r.AddSharer("ABCDE", &mockOutbox{}, "10.0.0.1:50001"))
	require.NoError(t, r.AddSharer("FGHJK", &mockOutbox{}, "10.0.0.2:50002"))
	require.NoError(t, r.AddViewer("b1", "ABCDE", &mockOutbox{}))
	require.NoError(t, r.AddViewer("b2", "FGHJK", &mockOutbox{}))

	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.peers {
		_, isSharer := r.sessions[id]
		memberships := 0
		for _, session := range r.sessions {
			if session.Viewers.Has(id) {
				memberships++
			}
		}
		if isSharer {
			require.Zero(t, memberships, "sharer %s must not be a viewer", id)
		} else {
			require.Equal(t, 1, memberships, "viewer %s must be in exactly one set", id)
		}
	}
}
