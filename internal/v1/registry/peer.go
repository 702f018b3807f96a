package registry

// Role distinguishes the session owner from its audience.
type Role string

const (
	RoleSharer Role = "sharer"
	RoleViewer Role = "viewer"
)

// Outbox is the write side of a peer's connection. Implementations must not
// block; enqueueing to a closed outbox returns an error that callers are
// free to swallow.
type Outbox interface {
	Send(data []byte) error
}

// Peer is the per-connection handle the registry routes messages through.
// A sharer's ID equals its RoomID; viewers choose their own.
type Peer struct {
	ID     string
	Room   string
	Role   Role
	Sender Outbox
}
