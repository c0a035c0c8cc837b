package ws

import (
	"testing"

	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType domain.SignalType
		wantTo   string
		wantErr  bool
	}{
		{name: "offer", raw: `{"type":"offer","sdp":"v=0"}`, wantType: domain.SignalOffer},
		{name: "answer", raw: `{"type":"answer","sdp":"v=0"}`, wantType: domain.SignalAnswer},
		{name: "wrapped candidate", raw: `{"type":"ice-candidate","candidate":{"candidate":"candidate:1"}}`, wantType: domain.SignalICECandidate},
		{name: "browser candidate", raw: `{"candidate":"candidate:1 1 udp","sdpMid":"0","sdpMLineIndex":0}`, wantType: domain.SignalICECandidate},
		{name: "directed", raw: `{"type":"offer","to":"peer-2"}`, wantType: domain.SignalOffer, wantTo: "peer-2"},
		{name: "leading whitespace", raw: "  \n{\"type\":\"bye\"}", wantType: domain.SignalOther},
		{name: "not json", raw: `hello`, wantErr: true},
		{name: "truncated", raw: `{"type":"offer"`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "string", raw: `"offer"`, wantErr: true},
		{name: "numeric type", raw: `{"type":5}`, wantErr: true},
		{name: "numeric to", raw: `{"type":"offer","to":5}`, wantErr: true},
		{name: "reserved room", raw: `{"type":"room.welcome"}`, wantErr: true},
		{name: "reserved peer", raw: `{"type":"peer.left"}`, wantErr: true},
		{name: "reserved error", raw: `{"type":"error.join"}`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrMalformedMessage)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, f.Type)
			assert.Equal(t, tt.wantTo, f.To)
			assert.Equal(t, tt.raw, string(f.Raw))
		})
	}
}

func TestIsReservedType(t *testing.T) {
	assert.True(t, IsReservedType(RoomWelcome))
	assert.True(t, IsReservedType(ErrorEvent))
	assert.False(t, IsReservedType("offer"))
	assert.False(t, IsReservedType("errors"))
	assert.False(t, IsReservedType(""))
}
