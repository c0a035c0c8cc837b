package peer

import (
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// candidateSignal carries one trickled ICE candidate through the relay.
type candidateSignal struct {
	Type      string                  `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

const candidateType = "ice-candidate"

// Hello is the first data-channel message each side sends once the channel
// opens.
type Hello struct {
	PeerID string    `msgpack:"peerId"`
	Name   string    `msgpack:"name"`
	SentAt time.Time `msgpack:"sentAt"`
}

func (h Hello) Encode() ([]byte, error) {
	return msgpack.Marshal(h)
}

func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	err := msgpack.Unmarshal(b, &h)
	return h, err
}
