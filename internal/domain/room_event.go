package domain

import (
	"context"
	"time"
)

// RoomEvent describes a membership change of a signaling room.
type RoomEvent struct {
	Type        RoomEventType `json:"type"`
	RoomID      string        `json:"roomId"`
	PeerID      string        `json:"peerId,omitempty"`
	MemberCount int           `json:"memberCount"`
	Reason      string        `json:"reason,omitempty"`
	OccurredAt  time.Time     `json:"occurredAt"`
}

func NewRoomEvent(eventType RoomEventType, roomID, peerID string, memberCount int) RoomEvent {
	return RoomEvent{
		Type:        eventType,
		RoomID:      roomID,
		PeerID:      peerID,
		MemberCount: memberCount,
		OccurredAt:  time.Now().UTC(),
	}
}

type RoomEventPublisher interface {
	Publish(ctx context.Context, event RoomEvent) error
}

// NopRoomEventPublisher discards every event.
type NopRoomEventPublisher struct{}

func (NopRoomEventPublisher) Publish(context.Context, RoomEvent) error { return nil }
