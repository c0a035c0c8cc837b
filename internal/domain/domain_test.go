package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifySignal(t *testing.T) {
	tests := []struct {
		name         string
		typ          string
		hasCandidate bool
		want         SignalType
	}{
		{"offer", "offer", false, SignalOffer},
		{"answer", "answer", false, SignalAnswer},
		{"typed candidate", "ice-candidate", true, SignalICECandidate},
		{"underscore candidate", "ice_candidate", false, SignalICECandidate},
		{"browser candidate", "", true, SignalICECandidate},
		{"untyped", "", false, SignalOther},
		{"custom", "bye", false, SignalOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySignal(tt.typ, tt.hasCandidate))
		})
	}
}

func TestNewRoomAuditLog(t *testing.T) {
	event := NewRoomEvent(EventMemberLeft, "room1", "peer-a", 1)
	event.Reason = "peer unreachable"

	log := NewRoomAuditLog(event)

	assert.NotEmpty(t, log.ID)
	assert.Equal(t, "room1", log.RoomID)
	assert.Equal(t, "peer-a", log.PeerID)
	assert.Equal(t, EventMemberLeft, log.EventType)
	assert.Equal(t, event.OccurredAt, log.Timestamp)
	assert.Equal(t, 1, log.Metadata["member_count"])
	assert.Equal(t, "peer unreachable", log.Metadata["reason"])
}

func TestNewRoomAuditLogFillsTimestamp(t *testing.T) {
	log := NewRoomAuditLog(RoomEvent{Type: EventRoomCreated, RoomID: "r"})

	assert.WithinDuration(t, time.Now(), log.Timestamp, time.Second)
	assert.NotContains(t, log.Metadata, "reason")
}
