package protocol

import "crypto/rand"

// RoomIDAlphabet is part of the wire contract: 32 symbols, omitting I/O/0/1
// so that room codes survive being read aloud or typed.
const RoomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomIDLength is the fixed length of server-generated room codes.
const RoomIDLength = 5

// NewRoomID generates a random room code. Room codes are the only capability
// a viewer needs to join, so the randomness source is crypto/rand.
func NewRoomID() string {
	buf := make([]byte, RoomIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure means the process is unusable
	}
	for i, b := range buf {
		// Top 5 bits index the 32-symbol alphabet.
		buf[i] = RoomIDAlphabet[b>>3]
	}
	return string(buf)
}
