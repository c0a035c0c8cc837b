package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	core    *Core
	clients chan *Client
}

func newTestServer(t *testing.T, core *Core, cfg ClientConfig) *testServer {
	t.Helper()

	ts := &testServer{core: core, clients: make(chan *Client, 16)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := NewClient(conn, r.URL.Query().Get("room"), cfg, logging.NewNopLogger())
		ts.clients <- c
		if err := c.Join(r.Context(), core); err != nil {
			c.Reject(NewJoinFailed(c.RoomID(), CodeRoomFull, err.Error()), CloseRoomFull, "room full")
			return
		}

		go c.WritePump()
		go c.ReadPump(core)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func (ts *testServer) dial(t *testing.T, room string) (*websocket.Conn, *Client) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	select {
	case c := <-ts.clients:
		return conn, c
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept connection")
		return nil, nil
	}
}

func readCloseCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if assert.ErrorAs(t, err, &ce) {
			return ce.Code
		}
		return 0
	}
}

func waitJoined(t *testing.T, c *Client) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.State() == StateJoined }, time.Second, 5*time.Millisecond)
}

func TestClient_RelayBetweenSockets(t *testing.T) {
	core, _, _ := newTestCore(2, false)
	ts := newTestServer(t, core, DefaultClientConfig())

	connA, clientA := ts.dial(t, "room1")
	connB, clientB := ts.dial(t, "room1")
	waitJoined(t, clientA)
	waitJoined(t, clientB)

	offer := `{"type":"offer","sdp":"v=0\r\n"}`
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte(offer)))

	_ = connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, got, err := connB.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, offer, string(got))

	require.NoError(t, connA.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool {
		return len(core.Registry().PeersOf("room1", clientB)) == 0 && clientA.State() == StateClosed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ProtocolViolationsClose(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func(*ClientConfig)
		send     func(*websocket.Conn) error
		wantCode int
	}{
		{
			name:     "non-json",
			send:     func(c *websocket.Conn) error { return c.WriteMessage(websocket.TextMessage, []byte("hello")) },
			wantCode: websocket.CloseUnsupportedData,
		},
		{
			name:     "binary frame",
			send:     func(c *websocket.Conn) error { return c.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"offer"}`)) },
			wantCode: websocket.CloseUnsupportedData,
		},
		{
			name:     "reserved type",
			send:     func(c *websocket.Conn) error { return c.WriteMessage(websocket.TextMessage, []byte(`{"type":"peer.joined"}`)) },
			wantCode: websocket.CloseUnsupportedData,
		},
		{
			name: "too large",
			cfg:  func(cfg *ClientConfig) { cfg.MaxMessageSize = 32 },
			send: func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer","sdp":"`+strings.Repeat("a", 64)+`"}`))
			},
			wantCode: websocket.CloseMessageTooBig,
		},
		{
			name: "rate limited",
			cfg:  func(cfg *ClientConfig) { cfg.RateLimit, cfg.RateBurst = 1, 2 },
			send: func(c *websocket.Conn) error {
				// Later writes may race the server closing the socket
				for i := 0; i < 5; i++ {
					_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ice-candidate"}`))
				}
				return nil
			},
			wantCode: websocket.ClosePolicyViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			core, _, _ := newTestCore(2, false)
			ts := newTestServer(t, core, cfg)

			conn, client := ts.dial(t, "room1")
			waitJoined(t, client)

			require.NoError(t, tt.send(conn))
			assert.Equal(t, tt.wantCode, readCloseCode(t, conn))

			assert.Eventually(t, func() bool {
				return client.State() == StateClosed && core.Registry().Len() == 0
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestClient_MalformedNotReportedToPeers(t *testing.T) {
	core, _, _ := newTestCore(2, false)
	ts := newTestServer(t, core, DefaultClientConfig())

	connA, clientA := ts.dial(t, "room1")
	connB, clientB := ts.dial(t, "room1")
	waitJoined(t, clientA)
	waitJoined(t, clientB)

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte("{bad")))
	assert.Equal(t, websocket.CloseUnsupportedData, readCloseCode(t, connA))

	_ = connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := connB.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout(), "peer receives nothing")
}

func TestClient_RoomFullRejected(t *testing.T) {
	core, _, _ := newTestCore(1, false)
	ts := newTestServer(t, core, DefaultClientConfig())

	_, first := ts.dial(t, "room1")
	waitJoined(t, first)

	conn, second := ts.dial(t, "room1")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error.join","roomId":"room1","data":{"code":"ROOM_FULL","message":"room is full"}}`, string(raw))
	assert.Equal(t, CloseRoomFull, readCloseCode(t, conn))
	assert.Equal(t, StateClosed, second.State())
	assert.Len(t, core.Registry().PeersOf("room1", nil), 1)
}

func TestClient_TerminateDropsQueuedFrames(t *testing.T) {
	c := NewClient(nil, "room1", ClientConfig{SendBuffer: 2}, logging.NewNopLogger())

	assert.True(t, c.Deliver([]byte("1")))
	assert.True(t, c.Deliver([]byte("2")))
	assert.False(t, c.Deliver([]byte("3")), "queue full")

	c.Terminate(websocket.CloseGoingAway, "bye")
	c.Terminate(websocket.CloseNormalClosure, "ignored")
	assert.Equal(t, websocket.CloseGoingAway, c.closeCode)
	assert.False(t, c.Deliver([]byte("4")))
}

func TestClient_JoinTwiceMovesToClosed(t *testing.T) {
	core, _, _ := newTestCore(2, false)
	c := NewClient(nil, "room1", DefaultClientConfig(), logging.NewNopLogger())

	require.NoError(t, c.Join(context.Background(), core))
	assert.Equal(t, StateJoined, c.State())

	assert.ErrorIs(t, c.Join(context.Background(), core), domain.ErrAlreadyJoined)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "closed", StateClosed.String())
}
