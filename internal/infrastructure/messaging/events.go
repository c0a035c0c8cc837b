package messaging

const (
	RoomEventsQueue = "room_events"
	DeadLetterQueue = "dead_letter_queue"
)
