package ws

import "encoding/json"

type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`
}

// Encode never fails for the payloads defined here.
func (m *WSMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}

type WelcomePayload struct {
	PeerID   string   `json:"peerId"`
	Peers    []string `json:"peers"`
	Capacity int      `json:"capacity"`
}

type PeerPayload struct {
	PeerID string `json:"peerId"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func NewWelcome(roomID, peerID string, peers []string, capacity int) *WSMessage {
	if peers == nil {
		peers = []string{}
	}

	return &WSMessage{
		Type:   RoomWelcome,
		RoomID: roomID,
		Data: WelcomePayload{
			PeerID:   peerID,
			Peers:    peers,
			Capacity: capacity,
		},
	}
}

func NewPeerJoined(roomID, peerID string) *WSMessage {
	return &WSMessage{
		Type:   PeerJoined,
		RoomID: roomID,
		Data:   PeerPayload{PeerID: peerID},
	}
}

func NewPeerLeft(roomID, peerID string) *WSMessage {
	return &WSMessage{
		Type:   PeerLeft,
		RoomID: roomID,
		Data:   PeerPayload{PeerID: peerID},
	}
}

func NewJoinFailed(roomID, code, reason string) *WSMessage {
	return &WSMessage{
		Type:   JoinFailed,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    code,
			Message: reason,
		},
	}
}
