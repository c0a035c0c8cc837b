package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerBackends(t *testing.T) {
	for _, backend := range []string{"zap", "zerolog"} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rendezvous.log")
			l := NewLogger(&LoggerConfig{
				FilePath: path,
				Encoding: "json",
				Level:    "debug",
				Logger:   backend,
			})

			l.Info(WebSocket, Join, "peer joined", map[ExtraKey]any{RoomID: "room1", PeerID: "a"})
			l.Debugf("relayed %d bytes", 42)

			if z, ok := l.(*zapLogger); ok {
				_ = z.logger.Sync()
			}

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "peer joined")
			assert.Contains(t, string(data), `"RoomId":"room1"`)
			assert.Contains(t, string(data), `"Category":"WebSocket"`)
		})
	}
}

func TestNewLoggerUnsupported(t *testing.T) {
	assert.Panics(t, func() {
		NewLogger(&LoggerConfig{Logger: "logrus"})
	})
}

func TestLogParamsToZapParams(t *testing.T) {
	params := logParamsToZapParams(map[ExtraKey]any{RoomID: "room1"})
	assert.Equal(t, []any{"RoomId", "room1"}, params)
}
