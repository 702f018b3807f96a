// Package signalling applies the protocol to inbound messages: it validates
// them, mutates the registry, and forwards or replies. One Dispatch call
// handles exactly one inbound frame; per-connection ordering comes from the
// caller invoking Dispatch from a single read loop.
package signalling

import (
	"context"

	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/metrics"
	"github.com/shareview/signaller/internal/v1/protocol"
	"github.com/shareview/signaller/internal/v1/registry"
)

// roomIDAttempts bounds the pre-check regeneration loop. Collisions that
// survive all attempts surface as an AddSharer error; the sharer then simply
// never receives a start_response.
const roomIDAttempts = 3

// IceBroker supplies TURN/STUN credential descriptors for clients behind
// restrictive NATs.
type IceBroker interface {
	ICEServers(ctx context.Context) ([]protocol.IceServer, error)
}

// Dispatcher routes decoded messages against the registry.
type Dispatcher struct {
	registry *registry.Registry
	broker   IceBroker

	// newRoomID is swappable so tests can force collisions.
	newRoomID func() string
}

// New creates a Dispatcher. broker may not be nil; use a disabled broker
// when no credentials are configured.
func New(reg *registry.Registry, broker IceBroker) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		broker:    broker,
		newRoomID: protocol.NewRoomID,
	}
}

// Dispatch handles one inbound text frame from the peer writing to sender.
// No message error ever tears down the connection: failures are logged,
// counted, and the frame is dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, sender registry.Outbox, raw []byte, sourceAddr string) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		logging.Warn(ctx, "dropping undecodable message",
			zap.Error(err), zap.ByteString("payload", raw))
		metrics.SignalMessages.WithLabelValues("invalid", "decode_error").Inc()
		return
	}

	switch msg.Type {
	case protocol.TypeStart:
		d.handleStart(ctx, sender, sourceAddr)
	case protocol.TypeJoin:
		d.handleJoin(ctx, msg, sender, raw)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeIce,
		protocol.TypeJoinDeclined, protocol.TypeRoomClosed:
		d.handleForward(ctx, msg, raw)
	case protocol.TypeLeave:
		d.handleLeave(ctx, msg, raw)
	case protocol.TypeIceServers:
		d.handleIceServers(ctx, sender)
	case protocol.TypeKeepAlive, protocol.TypeStartResponse, protocol.TypeIceServersResponse:
		// Tolerated upstream, nothing to do.
		metrics.SignalMessages.WithLabelValues(string(msg.Type), "ignored").Inc()
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, sender registry.Outbox, sourceAddr string) {
	room := d.newRoomID()
	for attempt := 1; attempt < roomIDAttempts && d.registry.HasRoom(room); attempt++ {
		room = d.newRoomID()
	}

	if err := d.registry.AddSharer(room, sender, sourceAddr); err != nil {
		logging.Error(ctx, "failed to create room",
			zap.String("room", room), zap.Error(err))
		metrics.SignalMessages.WithLabelValues(string(protocol.TypeStart), "error").Inc()
		return
	}

	logging.Info(ctx, "new room", zap.String("room", room))

	payload, err := protocol.EncodeStartResponse(room)
	if err == nil {
		err = sender.Send(payload)
	}
	if err != nil {
		logging.Warn(ctx, "failed to send start response",
			zap.String("room", room), zap.Error(err))
	}
	metrics.SignalMessages.WithLabelValues(string(protocol.TypeStart), "ok").Inc()
}

func (d *Dispatcher) handleJoin(ctx context.Context, msg protocol.Message, sender registry.Outbox, raw []byte) {
	if err := d.registry.AddViewer(msg.From, msg.Room, sender); err != nil {
		payload, encErr := protocol.EncodeJoinDeclined(msg.From, err.Error())
		if encErr == nil {
			if sendErr := sender.Send(payload); sendErr != nil {
				logging.Warn(ctx, "failed to send join_declined",
					zap.String("from", msg.From), zap.Error(sendErr))
			}
		}
		logging.Info(ctx, "join declined",
			zap.String("from", msg.From), zap.String("room", msg.Room), zap.Error(err))
		metrics.SignalMessages.WithLabelValues(string(protocol.TypeJoin), "declined").Inc()
		return
	}

	// The sharer is keyed by the room id; it receives the original payload.
	if err := d.registry.Forward(msg.Room, raw); err != nil {
		logging.Warn(ctx, "failed to forward join to sharer",
			zap.String("room", msg.Room), zap.Error(err))
	}
	metrics.SignalMessages.WithLabelValues(string(protocol.TypeJoin), "ok").Inc()
}

func (d *Dispatcher) handleForward(ctx context.Context, msg protocol.Message, raw []byte) {
	if err := d.registry.Forward(msg.To, raw); err != nil {
		logging.Warn(ctx, "dropping message for unknown peer",
			zap.String("type", string(msg.Type)), zap.String("to", msg.To), zap.Error(err))
		metrics.SignalMessages.WithLabelValues(string(msg.Type), "peer_unknown").Inc()
		return
	}
	metrics.SignalMessages.WithLabelValues(string(msg.Type), "ok").Inc()
}

func (d *Dispatcher) handleLeave(ctx context.Context, msg protocol.Message, raw []byte) {
	room, err := d.registry.RoomOf(msg.From)
	if err != nil {
		logging.Warn(ctx, "leave from unknown peer",
			zap.String("from", msg.From), zap.Error(err))
		metrics.SignalMessages.WithLabelValues(string(protocol.TypeLeave), "peer_unknown").Inc()
		return
	}

	// Notify the counterpart before mutating so the forward never targets a
	// peer the mutation already removed.
	if msg.From == room {
		// The sharer is leaving: every viewer sees the explicit leave,
		// then room_closed from the teardown below.
		if err := d.registry.ForwardToViewers(room, raw); err != nil {
			logging.Warn(ctx, "failed to forward leave to viewers",
				zap.String("room", room), zap.Error(err))
		}
	} else if err := d.registry.Forward(room, raw); err != nil {
		logging.Warn(ctx, "failed to forward leave to sharer",
			zap.String("room", room), zap.Error(err))
	}

	if err := d.registry.Leave(msg.From); err != nil {
		logging.Warn(ctx, "leave failed",
			zap.String("from", msg.From), zap.Error(err))
		metrics.SignalMessages.WithLabelValues(string(protocol.TypeLeave), "error").Inc()
		return
	}
	metrics.SignalMessages.WithLabelValues(string(protocol.TypeLeave), "ok").Inc()
}

func (d *Dispatcher) handleIceServers(ctx context.Context, sender registry.Outbox) {
	// The broker call runs outside any registry lock; it never reads
	// registry state.
	servers, err := d.broker.ICEServers(ctx)
	if err != nil {
		logging.Error(ctx, "ICE credential lookup failed", zap.Error(err))
		metrics.IceServerRequests.WithLabelValues("error").Inc()
		servers = nil
	} else {
		metrics.IceServerRequests.WithLabelValues("ok").Inc()
	}

	payload, err := protocol.EncodeIceServersResponse(servers)
	if err == nil {
		err = sender.Send(payload)
	}
	if err != nil {
		logging.Warn(ctx, "failed to send ice_servers_response", zap.Error(err))
	}
	metrics.SignalMessages.WithLabelValues(string(protocol.TypeIceServers), "ok").Inc()
}
