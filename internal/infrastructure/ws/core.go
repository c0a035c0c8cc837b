package ws

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/metrics"
	"github.com/hilthontt/rendezvous/internal/infrastructure/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const publishTimeout = 2 * time.Second

type CoreOptions struct {
	Logger    logging.Logger
	Metrics   *metrics.Metrics
	Publisher domain.RoomEventPublisher
	// Presence enables room.welcome, peer.joined and peer.left events.
	Presence bool
}

// Core joins connections to rooms and relays their frames. All calls are
// safe for concurrent use; per-room ordering comes from the Registry locks.
type Core struct {
	registry  *Registry
	logger    logging.Logger
	metrics   *metrics.Metrics
	publisher domain.RoomEventPublisher
	tracer    trace.Tracer
	presence  bool
}

func NewCore(registry *Registry, opts CoreOptions) *Core {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if opts.Publisher == nil {
		opts.Publisher = domain.NopRoomEventPublisher{}
	}

	return &Core{
		registry:  registry,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		tracer:    tracing.GetTracer("rendezvous/ws"),
		presence:  opts.Presence,
	}
}

func (core *Core) Registry() *Registry {
	return core.registry
}

func (core *Core) Join(ctx context.Context, c Conn) error {
	ctx, span := core.tracer.Start(ctx, "room.join", trace.WithAttributes(
		attribute.String("room.id", c.RoomID()),
		attribute.String("peer.id", c.ID()),
	))
	defer span.End()

	var evicted []eviction
	res, err := core.registry.Join(c.RoomID(), c, func(room *Room, peers []Conn) {
		if !core.presence {
			return
		}

		ids := make([]string, len(peers))
		for i, p := range peers {
			ids[i] = p.ID()
		}
		c.Deliver(NewWelcome(room.ID, c.ID(), ids, core.registry.Capacity()).Encode())

		_, evicted = core.deliverLocked(room, peers, NewPeerJoined(room.ID, c.ID()).Encode())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		core.rejected(ctx, c, err)
		return err
	}

	span.SetAttributes(attribute.Int("room.members", res.Members))

	core.metrics.JoinsTotal.Inc()
	core.metrics.ConnectionsActive.Inc()
	if res.Created {
		core.metrics.RoomsActive.Inc()
		core.publish(ctx, domain.NewRoomEvent(domain.EventRoomCreated, c.RoomID(), c.ID(), res.Members))
	}
	core.publish(ctx, domain.NewRoomEvent(domain.EventMemberJoined, c.RoomID(), c.ID(), res.Members))

	core.logger.Info(logging.WebSocket, logging.Join, "peer joined", map[logging.ExtraKey]any{
		logging.RoomID:      c.RoomID(),
		logging.PeerID:      c.ID(),
		logging.MemberCount: res.Members,
	})

	core.afterEviction(ctx, c.RoomID(), evicted)
	if res.RoomClosed {
		core.roomClosed(ctx, c.RoomID(), c.ID())
	}
	return nil
}

func (core *Core) rejected(ctx context.Context, c Conn, err error) {
	reason := "error"
	if errors.Is(err, domain.ErrRoomFull) {
		reason = metrics.ReasonRoomFull
		event := domain.NewRoomEvent(domain.EventRoomFull, c.RoomID(), c.ID(), core.registry.Capacity())
		event.Reason = err.Error()
		core.publish(ctx, event)
	}
	core.metrics.JoinsRejected.WithLabelValues(reason).Inc()

	core.logger.Warn(logging.WebSocket, logging.Join, "join rejected", map[logging.ExtraKey]any{
		logging.RoomID:       c.RoomID(),
		logging.PeerID:       c.ID(),
		logging.ErrorMessage: err.Error(),
	})
}

// Leave removes c from its room. It reports whether c was still a member, so
// repeated calls are harmless.
func (core *Core) Leave(ctx context.Context, c Conn, reason string) bool {
	ctx, span := core.tracer.Start(ctx, "room.leave", trace.WithAttributes(
		attribute.String("room.id", c.RoomID()),
		attribute.String("peer.id", c.ID()),
		attribute.String("reason", reason),
	))
	defer span.End()

	var evicted []eviction
	res := core.registry.Leave(c.RoomID(), c, func(room *Room, remaining []Conn) {
		if core.presence {
			_, evicted = core.deliverLocked(room, remaining, NewPeerLeft(room.ID, c.ID()).Encode())
		}
	})
	if !res.Removed {
		return false
	}

	core.metrics.ConnectionsActive.Dec()
	core.metrics.ConnectionsClosed.WithLabelValues(reason).Inc()

	event := domain.NewRoomEvent(domain.EventMemberLeft, c.RoomID(), c.ID(), res.Members)
	event.Reason = reason
	core.publish(ctx, event)

	core.logger.Info(logging.WebSocket, logging.Leave, "peer left", map[logging.ExtraKey]any{
		logging.RoomID:      c.RoomID(),
		logging.PeerID:      c.ID(),
		logging.MemberCount: res.Members,
		logging.Reason:      reason,
	})

	core.afterEviction(ctx, c.RoomID(), evicted)

	if res.RoomClosed {
		core.roomClosed(ctx, c.RoomID(), c.ID())
	}

	return true
}

// Relay forwards frame from sender to the other members of its room, or only
// to frame.To when set. It returns how many peers accepted the frame. Frames
// from a sender that already left are dropped.
func (core *Core) Relay(sender Conn, frame Frame) int {
	var (
		delivered int
		evicted   []eviction
	)

	member, closed := core.registry.withMember(sender.RoomID(), sender, func(room *Room, peers []Conn) {
		targets := peers
		if frame.To != "" {
			targets = nil
			for _, p := range peers {
				if p.ID() == frame.To {
					targets = []Conn{p}
					break
				}
			}
			if targets == nil {
				core.metrics.MessagesDropped.WithLabelValues(metrics.ReasonUnknownTarget).Inc()
				return
			}
		}

		delivered, evicted = core.deliverLocked(room, targets, frame.Raw)
	})
	if !member {
		core.metrics.MessagesDropped.WithLabelValues(metrics.ReasonSenderLeft).Inc()
		return 0
	}

	core.metrics.MessagesRelayed.WithLabelValues(string(frame.Type)).Add(float64(delivered))
	core.metrics.BytesRelayed.Add(float64(delivered * len(frame.Raw)))

	core.logger.Debug(logging.WebSocket, logging.Relay, "frame relayed", map[logging.ExtraKey]any{
		logging.RoomID:      sender.RoomID(),
		logging.PeerID:      sender.ID(),
		logging.MessageType: string(frame.Type),
		logging.MemberCount: delivered,
	})

	ctx := context.Background()
	core.afterEviction(ctx, sender.RoomID(), evicted)
	if closed {
		core.roomClosed(ctx, sender.RoomID(), sender.ID())
	}
	return delivered
}

// eviction records a member dropped for a full queue and how many members
// remained right after it.
type eviction struct {
	conn    Conn
	members int
}

// deliverLocked enqueues frame to every target still in room. Targets whose
// queue is full are evicted, and the peer.left that follows may evict more.
// Caller holds room.mu.
func (core *Core) deliverLocked(room *Room, targets []Conn, frame []byte) (int, []eviction) {
	var (
		delivered int
		evicted   []eviction
	)

	for _, p := range targets {
		if room.indexLocked(p) < 0 {
			continue
		}
		if p.Deliver(frame) {
			delivered++
			continue
		}
		evicted = append(evicted, core.evictLocked(room, p)...)
	}

	return delivered, evicted
}

func (core *Core) evictLocked(room *Room, p Conn) []eviction {
	if !room.removeLocked(p) {
		return nil
	}

	p.Terminate(websocket.CloseTryAgainLater, "peer unreachable")
	core.metrics.MessagesDropped.WithLabelValues(metrics.ReasonUnreachable).Inc()

	evicted := []eviction{{conn: p, members: len(room.conns)}}
	if core.presence {
		_, more := core.deliverLocked(room, room.peersLocked(nil), NewPeerLeft(room.ID, p.ID()).Encode())
		evicted = append(evicted, more...)
	}

	return evicted
}

func (core *Core) afterEviction(ctx context.Context, roomID string, evicted []eviction) {
	for _, e := range evicted {
		core.metrics.ConnectionsActive.Dec()
		core.metrics.ConnectionsClosed.WithLabelValues(metrics.ReasonUnreachable).Inc()

		event := domain.NewRoomEvent(domain.EventMemberLeft, roomID, e.conn.ID(), e.members)
		event.Reason = domain.ErrPeerUnreachable.Error()
		core.publish(ctx, event)

		core.logger.Warn(logging.WebSocket, logging.Eviction, "peer evicted", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.PeerID:       e.conn.ID(),
			logging.MemberCount:  e.members,
			logging.ErrorMessage: domain.ErrPeerUnreachable.Error(),
		})
	}
}

// roomClosed accounts for a room that just left the Registry. peerID is the
// member whose operation emptied it.
func (core *Core) roomClosed(ctx context.Context, roomID, peerID string) {
	core.metrics.RoomsActive.Dec()
	core.publish(ctx, domain.NewRoomEvent(domain.EventRoomDeleted, roomID, peerID, 0))
}

// Shutdown terminates every joined connection.
func (core *Core) Shutdown(ctx context.Context) {
	n := core.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")

	core.metrics.ConnectionsActive.Set(0)
	core.metrics.RoomsActive.Set(0)
	core.metrics.ConnectionsClosed.WithLabelValues(metrics.ReasonShutdown).Add(float64(n))

	core.logger.Info(logging.WebSocket, logging.Shutdown, "connections closed", map[logging.ExtraKey]any{
		logging.MemberCount: n,
	})
}

func (core *Core) publish(ctx context.Context, event domain.RoomEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := core.publisher.Publish(ctx, event); err != nil {
		core.logger.Warn(logging.RabbitMQ, logging.Publish, "room event not published", map[logging.ExtraKey]any{
			logging.RoomID:       event.RoomID,
			logging.PeerID:       event.PeerID,
			logging.ErrorMessage: err.Error(),
		})
	}
}
