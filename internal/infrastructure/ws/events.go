package ws

import "strings"

// Server-originated event types. Clients may not send these.
const (
	RoomWelcome = "room.welcome"
	PeerJoined  = "peer.joined"
	PeerLeft    = "peer.left"

	ErrorEvent = "error"
	JoinFailed = "error.join"
)

// Error codes carried by JoinFailed.
const (
	CodeRoomFull      = "ROOM_FULL"
	CodeAlreadyJoined = "ALREADY_JOINED"
	CodeJoinFailed    = "JOIN_FAILED"
)

// CloseRoomFull is the application close code sent after a RoomFull rejection.
const CloseRoomFull = 4409

func IsReservedType(t string) bool {
	return strings.HasPrefix(t, "room.") ||
		strings.HasPrefix(t, "peer.") ||
		t == ErrorEvent ||
		strings.HasPrefix(t, ErrorEvent+".")
}
