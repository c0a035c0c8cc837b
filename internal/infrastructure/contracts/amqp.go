package contracts

import "github.com/hilthontt/rendezvous/internal/domain"

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys
const (
	EventRoomCreated  = "room.created"
	EventRoomDeleted  = "room.deleted"
	EventRoomFull     = "room.full"
	EventMemberJoined = "member.joined"
	EventMemberLeft   = "member.left"
)

var roomRoutingKeys = map[domain.RoomEventType]string{
	domain.EventRoomCreated:  EventRoomCreated,
	domain.EventRoomDeleted:  EventRoomDeleted,
	domain.EventRoomFull:     EventRoomFull,
	domain.EventMemberJoined: EventMemberJoined,
	domain.EventMemberLeft:   EventMemberLeft,
}

// RoutingKey maps a room event to its routing key. ok is false for unknown
// event types.
func RoutingKey(t domain.RoomEventType) (key string, ok bool) {
	key, ok = roomRoutingKeys[t]
	return key, ok
}

func RoomRoutingKeys() []string {
	return []string{EventRoomCreated, EventRoomDeleted, EventRoomFull, EventMemberJoined, EventMemberLeft}
}
