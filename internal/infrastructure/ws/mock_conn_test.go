package ws

import (
	"encoding/json"
	"sync"
)

type mockConn struct {
	id   string
	room string
	// full makes Deliver refuse every frame
	full bool

	mu         sync.Mutex
	received   [][]byte
	terminated bool
	closeCode  int
}

func newMockConn(id, room string) *mockConn {
	return &mockConn{id: id, room: room}
}

func (m *mockConn) ID() string     { return m.id }
func (m *mockConn) RoomID() string { return m.room }

func (m *mockConn) Deliver(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full || m.terminated {
		return false
	}
	m.received = append(m.received, frame)
	return true
}

func (m *mockConn) Terminate(code int, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.terminated {
		m.terminated = true
		m.closeCode = code
	}
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.received))
	copy(out, m.received)
	return out
}

// relayed returns received frames that are not server events.
func (m *mockConn) relayed() [][]byte {
	var out [][]byte
	for _, f := range m.getReceived() {
		var env struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(f, &env) == nil && IsReservedType(env.Type) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (m *mockConn) events() []WSMessage {
	var out []WSMessage
	for _, f := range m.getReceived() {
		var msg WSMessage
		if json.Unmarshal(f, &msg) == nil && IsReservedType(msg.Type) {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockConn) isTerminated() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated, m.closeCode
}

func ids(conns []Conn) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.ID()
	}
	return out
}
