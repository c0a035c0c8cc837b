// Package peer is a signaling client: it joins a room over WebSocket and
// negotiates a WebRTC data channel with the other member through the relay.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ws"
	"github.com/pion/webrtc/v4"
	"github.com/tidwall/gjson"
)

const (
	DataChannelLabel = "rendezvous"
	welcomeTimeout   = 10 * time.Second
)

var ErrNoWelcome = errors.New("server did not send a welcome")

type Options struct {
	// ServerURL is the base http(s) or ws(s) URL of the signaling service.
	ServerURL  string
	RoomID     string
	Name       string
	ICEServers []webrtc.ICEServer
	// API builds the peer connection; nil uses pion defaults.
	API    *webrtc.API
	Dialer *websocket.Dialer
	Logger logging.Logger
}

type Peer struct {
	opts   Options
	id     string
	others []string
	conn   *signalConn
	pc     *webrtc.PeerConnection

	mu                sync.Mutex
	pendingCandidates []webrtc.ICECandidateInit

	hellos    chan Hello
	left      chan string
	done      chan struct{}
	closeOnce sync.Once
}

// RoomURL maps a server base URL to the room's WebSocket endpoint.
func RoomURL(serverURL, roomID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/chat/rooms/" + url.PathEscape(roomID)
	return u.String(), nil
}

// Join dials the room and waits for the welcome. A newcomer that finds other
// members starts the offer; the first member waits for one.
func Join(ctx context.Context, opts Options) (*Peer, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.API == nil {
		opts.API = webrtc.NewAPI()
	}

	target, err := RoomURL(opts.ServerURL, opts.RoomID)
	if err != nil {
		return nil, err
	}

	c, _, err := opts.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	p := &Peer{
		opts:   opts,
		conn:   newSignalConn(c),
		hellos: make(chan Hello, 4),
		left:   make(chan string, 4),
		done:   make(chan struct{}),
	}

	_ = c.SetReadDeadline(time.Now().Add(welcomeTimeout))
	if err := p.awaitWelcome(); err != nil {
		_ = c.Close()
		return nil, err
	}
	_ = c.SetReadDeadline(time.Time{})

	if err := p.setupPeerConnection(); err != nil {
		_ = p.conn.Close()
		return nil, err
	}

	go p.readLoop()

	if len(p.others) > 0 {
		if err := p.offer(); err != nil {
			p.Close()
			return nil, err
		}
	}

	return p, nil
}

func (p *Peer) awaitWelcome() error {
	data, err := p.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoWelcome, err)
	}

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrNoWelcome, err)
	}

	switch msg.Type {
	case ws.RoomWelcome:
		var welcome ws.WelcomePayload
		if err := json.Unmarshal(msg.Data, &welcome); err != nil {
			return fmt.Errorf("%w: %w", ErrNoWelcome, err)
		}
		p.id = welcome.PeerID
		p.others = welcome.Peers
		return nil
	case ws.JoinFailed:
		var payload ws.ErrorPayload
		_ = json.Unmarshal(msg.Data, &payload)
		if payload.Code == ws.CodeRoomFull {
			return domain.ErrRoomFull
		}
		return fmt.Errorf("join failed: %s", payload.Message)
	}

	return fmt.Errorf("%w: got %q", ErrNoWelcome, msg.Type)
}

func (p *Peer) setupPeerConnection() error {
	pc, err := p.opts.API.NewPeerConnection(webrtc.Configuration{ICEServers: p.opts.ICEServers})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	p.pc = pc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := p.conn.WriteJSON(candidateSignal{Type: candidateType, Candidate: c.ToJSON()}); err != nil {
			p.opts.Logger.Debugf("send candidate: %v", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.opts.Logger.Debugf("peer %s connection state %s", p.id, state)
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() == DataChannelLabel {
			p.attach(dc)
		}
	})

	return nil
}

func (p *Peer) attach(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		hello, err := Hello{PeerID: p.id, Name: p.opts.Name, SentAt: time.Now().UTC()}.Encode()
		if err != nil {
			return
		}
		if err := dc.Send(hello); err != nil {
			p.opts.Logger.Debugf("send hello: %v", err)
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		hello, err := DecodeHello(msg.Data)
		if err != nil {
			p.opts.Logger.Debugf("decode hello: %v", err)
			return
		}
		select {
		case p.hellos <- hello:
		default:
		}
	})
}

func (p *Peer) offer() error {
	ordered := true
	dc, err := p.pc.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	p.attach(dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	return p.conn.WriteJSON(p.pc.LocalDescription())
}

func (p *Peer) answer(offer webrtc.SessionDescription) error {
	if err := p.setRemote(offer); err != nil {
		return err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	return p.conn.WriteJSON(p.pc.LocalDescription())
}

// setRemote applies desc and flushes candidates that arrived before it.
func (p *Peer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	pending := p.pendingCandidates
	p.pendingCandidates = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
	}
	return nil
}

func (p *Peer) addCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if p.pc.RemoteDescription() == nil {
		p.pendingCandidates = append(p.pendingCandidates, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.pc.AddICECandidate(c)
}

func (p *Peer) readLoop() {
	defer p.Close()

	for {
		data, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.opts.Logger.Debugf("signaling read: %v", err)
			}
			return
		}

		if err := p.handle(data); err != nil {
			p.opts.Logger.Warnf("signal from room %s: %v", p.opts.RoomID, err)
		}
	}
}

func (p *Peer) handle(data []byte) error {
	typ := gjson.GetBytes(data, "type").String()

	switch typ {
	case ws.PeerJoined:
		return nil
	case ws.PeerLeft:
		select {
		case p.left <- gjson.GetBytes(data, "data.peerId").String():
		default:
		}
		return nil
	case "offer", "answer":
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(data, &desc); err != nil {
			return err
		}
		if desc.Type == webrtc.SDPTypeOffer {
			return p.answer(desc)
		}
		return p.setRemote(desc)
	}

	if domain.ClassifySignal(typ, gjson.GetBytes(data, "candidate").Exists()) == domain.SignalICECandidate {
		var sig candidateSignal
		if err := json.Unmarshal(data, &sig); err != nil {
			return err
		}
		return p.addCandidate(sig.Candidate)
	}

	return nil
}

func (p *Peer) ID() string { return p.id }

// Others returns the members present when this peer joined.
func (p *Peer) Others() []string { return p.others }

func (p *Peer) Hellos() <-chan Hello { return p.hellos }

// Left reports ids of members that leave the room.
func (p *Peer) Left() <-chan string { return p.left }

func (p *Peer) Done() <-chan struct{} { return p.done }

// WaitHello blocks until the remote side's hello arrives.
func (p *Peer) WaitHello(ctx context.Context) (Hello, error) {
	select {
	case h := <-p.hellos:
		return h, nil
	case <-p.done:
		return Hello{}, errors.New("peer closed")
	case <-ctx.Done():
		return Hello{}, ctx.Err()
	}
}

func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		if p.pc != nil {
			_ = p.pc.Close()
		}
		_ = p.conn.Close()
		close(p.done)
	})
}
