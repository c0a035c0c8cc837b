package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"simple", "room1", ""},
		{"uuid", "8f14e45f-ceea-467f-a8f5-6d1b2f1c4c3a", ""},
		{"punctuation", "team.a_b~c:d", ""},
		{"empty", "", "roomId: this field is required"},
		{"blank", "   ", "roomId: this field is required"},
		{"slash", "a/b", "roomId: must contain only"},
		{"space", "a b", "roomId: must contain only"},
		{"too long", strings.Repeat("x", 129), "roomId: must be no more than 128 characters"},
	}

	v := RoomID()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOneOf(t *testing.T) {
	v := Field("logger", OneOf("zap", "zerolog"))

	assert.NoError(t, v("zap"))
	assert.EqualError(t, v("logrus"), "logger: must be one of: zap, zerolog")
}

func TestCompose(t *testing.T) {
	v := Compose(Required(), MaxLength(3))

	assert.NoError(t, v("abc"))
	assert.EqualError(t, v(""), "this field is required")
	assert.EqualError(t, v("abcd"), "must be no more than 3 characters")
}
