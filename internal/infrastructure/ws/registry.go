package ws

import (
	"sync"
	"time"

	"github.com/hilthontt/rendezvous/internal/domain"
)

const DefaultCapacity = 2

// Conn is a joined signaling connection as seen by the Registry.
type Conn interface {
	ID() string
	RoomID() string
	// Deliver enqueues frame without blocking and reports whether it was
	// accepted. A false return means the connection cannot keep up.
	Deliver(frame []byte) bool
	// Terminate starts teardown and must not block.
	Terminate(code int, reason string)
}

// Room is the ordered set of connections sharing a room identifier. Its mutex
// serializes membership changes with relays.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	conns []Conn
}

func (r *Room) indexLocked(c Conn) int {
	for i, existing := range r.conns {
		if existing == c {
			return i
		}
	}
	return -1
}

func (r *Room) removeLocked(c Conn) bool {
	i := r.indexLocked(c)
	if i < 0 {
		return false
	}

	// Keep join order
	r.conns = append(r.conns[:i], r.conns[i+1:]...)
	return true
}

// peersLocked copies the connections other than exclude, in join order.
func (r *Room) peersLocked(exclude Conn) []Conn {
	peers := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		if c != exclude {
			peers = append(peers, c)
		}
	}
	return peers
}

type RoomSnapshot struct {
	ID        string
	CreatedAt time.Time
	Peers     []string
}

type JoinResult struct {
	Room    *Room
	Created bool
	Members int
	// RoomClosed is set when evictions in onJoin emptied the room, joiner
	// included. The room is already gone from the Registry.
	RoomClosed bool
}

type LeaveResult struct {
	Removed    bool
	Members    int
	RoomClosed bool
}

// Registry owns the roomID to Room mapping. Lock order is registry, then room.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	capacity int
	now      func() time.Time
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Registry{
		rooms:    make(map[string]*Room),
		capacity: capacity,
		now:      time.Now,
	}
}

func (r *Registry) Capacity() int {
	return r.capacity
}

// Join appends c to the room, creating it if needed. onJoin, when set, runs
// while the room is still locked with the previous members in join order. On
// error membership is unchanged.
func (r *Registry) Join(roomID string, c Conn, onJoin func(room *Room, peers []Conn)) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		room = &Room{ID: roomID, CreatedAt: r.now()}
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.indexLocked(c) >= 0 {
		return JoinResult{}, domain.ErrAlreadyJoined
	}
	if len(room.conns) >= r.capacity {
		return JoinResult{}, domain.ErrRoomFull
	}

	peers := room.peersLocked(nil)
	room.conns = append(room.conns, c)
	r.rooms[roomID] = room

	if onJoin != nil {
		onJoin(room, peers)
	}

	res := JoinResult{Room: room, Created: !exists, Members: len(room.conns)}
	if len(room.conns) == 0 {
		delete(r.rooms, roomID)
		res.RoomClosed = true
	}

	return res, nil
}

// Leave removes c from its room and drops the room once empty. onLeave, when
// set, runs under the room lock with the remaining members. Leaving a room
// the connection is not in is a no-op.
func (r *Registry) Leave(roomID string, c Conn, onLeave func(room *Room, remaining []Conn)) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.removeLocked(c) {
		return LeaveResult{}
	}

	if onLeave != nil {
		onLeave(room, room.peersLocked(nil))
	}

	res := LeaveResult{Removed: true, Members: len(room.conns)}
	if len(room.conns) == 0 {
		delete(r.rooms, roomID)
		res.RoomClosed = true
	}

	return res
}

// PeersOf returns the members of roomID other than exclude, in join order.
// Unknown rooms yield nil.
func (r *Registry) PeersOf(roomID string, exclude Conn) []Conn {
	room := r.lookup(roomID)
	if room == nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	return room.peersLocked(exclude)
}

// withMember runs fn under the room lock only if c is still a member. fn may
// evict members; a room left empty is dropped and closed reports it.
func (r *Registry) withMember(roomID string, c Conn, fn func(room *Room, peers []Conn)) (member, closed bool) {
	room := r.lookup(roomID)
	if room == nil {
		return false, false
	}

	room.mu.Lock()
	if room.indexLocked(c) < 0 {
		room.mu.Unlock()
		return false, false
	}
	fn(room, room.peersLocked(c))
	empty := len(room.conns) == 0
	room.mu.Unlock()

	if empty {
		closed = r.dropIfEmpty(roomID, room)
	}
	return true, closed
}

// dropIfEmpty unregisters room if it is still the room for roomID and nobody
// joined it in the meantime.
func (r *Registry) dropIfEmpty(roomID string, room *Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] != room {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.conns) > 0 {
		return false
	}
	delete(r.rooms, roomID)
	return true
}

func (r *Registry) lookup(roomID string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rooms[roomID]
}

func (r *Registry) Snapshot(roomID string) (RoomSnapshot, bool) {
	room := r.lookup(roomID)
	if room == nil {
		return RoomSnapshot{}, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	ids := make([]string, len(room.conns))
	for i, c := range room.conns {
		ids[i] = c.ID()
	}

	return RoomSnapshot{ID: room.ID, CreatedAt: room.CreatedAt, Peers: ids}, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

// CloseAll terminates every connection and empties the registry. It returns
// the number of connections terminated.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, room := range r.rooms {
		room.mu.Lock()
		for _, c := range room.conns {
			c.Terminate(code, reason)
			n++
		}
		room.conns = nil
		room.mu.Unlock()

		delete(r.rooms, id)
	}

	return n
}
