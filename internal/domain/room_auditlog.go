package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated  RoomEventType = "room_created"
	EventRoomDeleted  RoomEventType = "room_deleted"
	EventMemberJoined RoomEventType = "member_joined"
	EventMemberLeft   RoomEventType = "member_left"
	EventRoomFull     RoomEventType = "room_full_rejected"
)

type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	PeerID    string         `bson:"peer_id,omitempty" json:"peerId,omitempty"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]RoomAuditLog, error)
	GetByEventType(ctx context.Context, eventType RoomEventType, from, to time.Time) ([]RoomAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context, retention time.Duration) error
}

// NewRoomAuditLog converts a published RoomEvent into its persisted form.
func NewRoomAuditLog(event RoomEvent) *RoomAuditLog {
	metadata := map[string]any{
		"member_count": event.MemberCount,
	}
	if event.Reason != "" {
		metadata["reason"] = event.Reason
	}

	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    event.RoomID,
		PeerID:    event.PeerID,
		EventType: event.Type,
		Timestamp: ts,
		Metadata:  metadata,
	}
}
