package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 2, cfg.Room.Capacity)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
	assert.Equal(t, int64(64*1024), cfg.WS.MaxMessageSize)
	assert.Equal(t, 60*time.Second, cfg.WS.PongWait)
	assert.True(t, cfg.WS.PresenceEvents)
	assert.Equal(t, "token_bucket", cfg.RateLimiter.Strategy)
	assert.Equal(t, "memory", cfg.RateLimiter.Store)
	assert.Equal(t, "zap", cfg.Logger.Logger)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	require.Len(t, cfg.RTC.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.RTC.ICEServers[0].URLs)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9090
room:
  capacity: 4
ws:
  pong_wait: 30s
  presence_events: false
rate_limiter:
  strategy: fixed_window
rtc:
  ice_servers:
    - urls: ["turn:turn.example.com:3478"]
      username: user
      credential: secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(9090), cfg.HTTP.Port)
	assert.Equal(t, 4, cfg.Room.Capacity)
	assert.Equal(t, 30*time.Second, cfg.WS.PongWait)
	assert.False(t, cfg.WS.PresenceEvents)
	assert.Equal(t, "fixed_window", cfg.RateLimiter.Strategy)
	require.Len(t, cfg.RTC.ICEServers, 1)
	assert.Equal(t, "user", cfg.RTC.ICEServers[0].Username)
	assert.Equal(t, "secret", cfg.RTC.ICEServers[0].Credential)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("ROOM_CAPACITY", "3")
	t.Setenv("LOGGER_LOGGER", "zerolog")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint16(7070), cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Room.Capacity)
	assert.Equal(t, "zerolog", cfg.Logger.Logger)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Room.Capacity = 0
	cfg.RateLimiter.Store = "memcached"
	cfg.Audit.Enabled = true

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room.capacity")
	assert.Contains(t, err.Error(), "rate_limiter.store: must be one of: memory, redis")
	assert.Contains(t, err.Error(), "audit requires rabbitmq")
}
