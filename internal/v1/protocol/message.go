// Package protocol defines the JSON wire messages exchanged over the
// signalling WebSocket. Payloads may carry fields beyond the ones declared
// here (SDP bodies, ICE candidates); the server never reads them and always
// forwards the original raw text.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type is the message discriminator carried in the "type" field.
type Type string

const (
	TypeStart              Type = "start"
	TypeStartResponse      Type = "start_response"
	TypeJoin               Type = "join"
	TypeJoinDeclined       Type = "join_declined"
	TypeOffer              Type = "offer"
	TypeAnswer             Type = "answer"
	TypeIce                Type = "ice"
	TypeLeave              Type = "leave"
	TypeRoomClosed         Type = "room_closed"
	TypeKeepAlive          Type = "keep_alive"
	TypeIceServers         Type = "ice_servers"
	TypeIceServersResponse Type = "ice_servers_response"
)

// Message is the decoded view of an inbound envelope. Only the fields the
// server routes on are decoded; everything else stays in the raw payload.
type Message struct {
	Type   Type   `json:"type"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Room   string `json:"room,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IceServer describes one STUN/TURN endpoint handed to clients.
type IceServer struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Decode parses and validates an inbound envelope. It returns an error for
// malformed JSON, an unknown type, or a missing required field.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}

	switch msg.Type {
	case TypeStart, TypeKeepAlive, TypeIceServers:
		// No required fields.
	case TypeStartResponse:
		if err := require(msg, "room", msg.Room); err != nil {
			return Message{}, err
		}
	case TypeJoin:
		if err := require(msg, "from", msg.From); err != nil {
			return Message{}, err
		}
		if err := require(msg, "room", msg.Room); err != nil {
			return Message{}, err
		}
	case TypeJoinDeclined:
		if err := require(msg, "to", msg.To); err != nil {
			return Message{}, err
		}
		if err := require(msg, "reason", msg.Reason); err != nil {
			return Message{}, err
		}
	case TypeRoomClosed:
		if err := require(msg, "to", msg.To); err != nil {
			return Message{}, err
		}
		if err := require(msg, "room", msg.Room); err != nil {
			return Message{}, err
		}
	case TypeOffer, TypeAnswer, TypeIce:
		if err := require(msg, "from", msg.From); err != nil {
			return Message{}, err
		}
		if err := require(msg, "to", msg.To); err != nil {
			return Message{}, err
		}
	case TypeLeave:
		if err := require(msg, "from", msg.From); err != nil {
			return Message{}, err
		}
	case TypeIceServersResponse:
		// Tolerated upstream, content ignored.
	default:
		return Message{}, fmt.Errorf("unknown message type %q", string(msg.Type))
	}

	return msg, nil
}

func require(msg Message, name, value string) error {
	if value == "" {
		return fmt.Errorf("message type %q requires field %q", string(msg.Type), name)
	}
	return nil
}

// --- Server-synthesized replies ---

type startResponse struct {
	Type Type   `json:"type"`
	Room string `json:"room"`
}

type joinDeclined struct {
	Type   Type   `json:"type"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type roomClosed struct {
	Type Type   `json:"type"`
	To   string `json:"to"`
	Room string `json:"room"`
}

type iceServersResponse struct {
	Type       Type        `json:"type"`
	IceServers []IceServer `json:"ice_servers"`
}

// EncodeStartResponse builds the reply confirming a freshly created room.
func EncodeStartResponse(room string) ([]byte, error) {
	return json.Marshal(startResponse{Type: TypeStartResponse, Room: room})
}

// EncodeJoinDeclined builds the rejection reply for a failed join.
func EncodeJoinDeclined(to, reason string) ([]byte, error) {
	return json.Marshal(joinDeclined{Type: TypeJoinDeclined, To: to, Reason: reason})
}

// EncodeRoomClosed builds the notification sent to each viewer when its
// session is torn down.
func EncodeRoomClosed(to, room string) ([]byte, error) {
	return json.Marshal(roomClosed{Type: TypeRoomClosed, To: to, Room: room})
}

// EncodeIceServersResponse builds the ICE credential reply. A nil slice
// encodes as an empty list, never null.
func EncodeIceServersResponse(servers []IceServer) ([]byte, error) {
	if servers == nil {
		servers = []IceServer{}
	}
	return json.Marshal(iceServersResponse{Type: TypeIceServersResponse, IceServers: servers})
}
