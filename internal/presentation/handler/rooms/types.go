package rooms

import "time"

// roomResponse is a point-in-time view of a live room
type roomResponse struct {
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	Capacity  int       `json:"capacity"`
	Peers     []string  `json:"peers"` // Peer ids in join order
}
