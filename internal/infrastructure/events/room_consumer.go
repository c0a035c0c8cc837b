package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/hilthontt/rendezvous/internal/infrastructure/contracts"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoomConsumer writes every room event from the broker to the audit log.
type RoomConsumer struct {
	rabbitmq   *messaging.RabbitMQ
	repository domain.RoomAuditRepository
	logger     logging.Logger
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ, repository domain.RoomAuditRepository, logger logging.Logger) *RoomConsumer {
	return &RoomConsumer{
		rabbitmq:   rabbitmq,
		repository: repository,
		logger:     logger,
	}
}

func (c *RoomConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.RoomEventsQueue, func(ctx context.Context, msg amqp.Delivery) error {
		return c.handle(ctx, msg.Body)
	})
}

func (c *RoomConsumer) handle(ctx context.Context, body []byte) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to unmarshal message", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	var event domain.RoomEvent
	if err := json.Unmarshal(message.Data, &event); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to unmarshal room event", map[logging.ExtraKey]any{
			logging.RoomID:       message.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	if event.Type == "" || event.RoomID == "" {
		return fmt.Errorf("incomplete room event for room %q", message.RoomID)
	}

	if err := c.repository.Log(ctx, domain.NewRoomAuditLog(event)); err != nil {
		c.logger.Error(logging.MongoDB, logging.Insert, "failed to write audit log", map[logging.ExtraKey]any{
			logging.RoomID:       event.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	return nil
}
