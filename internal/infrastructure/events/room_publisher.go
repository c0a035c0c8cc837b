package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/contracts"
)

type messagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// RoomPublisher sends room lifecycle events to the broker.
type RoomPublisher struct {
	rabbitmq messagePublisher
}

func NewRoomPublisher(rabbitmq messagePublisher) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) Publish(ctx context.Context, event domain.RoomEvent) error {
	routingKey, ok := contracts.RoutingKey(event.Type)
	if !ok {
		return fmt.Errorf("no routing key for room event %q", event.Type)
	}

	roomEventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		RoomID: event.RoomID,
		Data:   roomEventJSON,
	})
}
