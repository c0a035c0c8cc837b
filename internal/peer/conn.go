package peer

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// signalConn serializes writes: pion callbacks send candidates from their
// own goroutines while the read loop sends offers and answers.
type signalConn struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func newSignalConn(c *websocket.Conn) *signalConn {
	return &signalConn{conn: c}
}

func (w *signalConn) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *signalConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *signalConn) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeWait))
	return w.conn.Close()
}
