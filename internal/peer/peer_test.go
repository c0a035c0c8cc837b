package peer

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/configs"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ws"
	"github.com/hilthontt/rendezvous/internal/presentation/handler/rooms"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8080", "ws://localhost:8080/chat/rooms/room1"},
		{"https://relay.example/", "wss://relay.example/chat/rooms/room1"},
		{"ws://10.0.0.1:9000/base", "ws://10.0.0.1:9000/base/chat/rooms/room1"},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := RoomURL(tt.server, "room1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := RoomURL("ftp://x", "room1")
	assert.Error(t, err)
}

func TestHelloCodec(t *testing.T) {
	in := Hello{PeerID: "p1", Name: "alice", SentAt: time.Unix(1700000000, 0).UTC()}
	b, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeHello(b)
	require.NoError(t, err)
	assert.Equal(t, in.PeerID, out.PeerID)
	assert.Equal(t, in.Name, out.Name)
	assert.True(t, in.SentAt.Equal(out.SentAt))

	_, err = DecodeHello([]byte{0xc1})
	assert.Error(t, err)
}

func newSignalingServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg, err := configs.Load("")
	require.NoError(t, err)

	logger := logging.NewNopLogger()
	core := ws.NewCore(ws.NewRegistry(cfg.Room.Capacity), ws.CoreOptions{Logger: logger, Presence: true})
	h := rooms.NewHandler(core, *cfg, logger)

	r := chi.NewRouter()
	r.Get("/chat/rooms/{roomId}", h.JoinRoomHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func loopbackAPI() *webrtc.API {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

func TestJoin_RoomFull(t *testing.T) {
	srv := newSignalingServer(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		p, err := Join(ctx, Options{ServerURL: srv.URL, RoomID: "full", Name: name, API: loopbackAPI()})
		require.NoError(t, err)
		t.Cleanup(p.Close)
	}

	_, err := Join(ctx, Options{ServerURL: srv.URL, RoomID: "full", Name: "c"})
	assert.ErrorIs(t, err, domain.ErrRoomFull)
}

func TestDataChannelThroughRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping WebRTC negotiation in short mode")
	}

	srv := newSignalingServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	alice, err := Join(ctx, Options{ServerURL: srv.URL, RoomID: "room1", Name: "alice", API: loopbackAPI()})
	require.NoError(t, err)
	defer alice.Close()
	assert.Empty(t, alice.Others())

	bob, err := Join(ctx, Options{ServerURL: srv.URL, RoomID: "room1", Name: "bob", API: loopbackAPI()})
	require.NoError(t, err)
	defer bob.Close()
	assert.Equal(t, []string{alice.ID()}, bob.Others())

	fromBob, err := alice.WaitHello(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", fromBob.Name)
	assert.Equal(t, bob.ID(), fromBob.PeerID)

	fromAlice, err := bob.WaitHello(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", fromAlice.Name)

	bob.Close()
	select {
	case id := <-alice.Left():
		assert.Equal(t, bob.ID(), id)
	case <-ctx.Done():
		t.Fatal("alice was not told that bob left")
	}
}
