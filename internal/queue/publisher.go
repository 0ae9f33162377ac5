package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Activity headers mirror the body's routing fields.
const (
	headerClaimID   = "x-claim-id"
	headerOutcome   = "x-outcome"
	headerActorRole = "x-actor-role"
	headerNoOp      = "x-no-op"
)

var errPublishNacked = errors.New("broker did not confirm activity message")

// RabbitMQPublisher publishes activity messages on a confirm-mode channel and
// returns only after the broker has taken responsibility for the message.
type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg ActivityMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := newActivityPublishing(msg)
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish attempt %s to queue %q: %w", msg.AttemptID, queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for confirm of attempt %s: %w", msg.AttemptID, err)
	}
	if !acked {
		return fmt.Errorf("%w: attempt %s", errPublishNacked, msg.AttemptID)
	}

	return nil
}

// newActivityPublishing builds the persistent AMQP message for one attempt.
// The attempt id doubles as the message id so redeliveries can be deduplicated.
func newActivityPublishing(msg ActivityMessage) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid activity message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal activity message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     msg.OccurredAt.UTC(),
		MessageId:     msg.AttemptID,
		CorrelationId: msg.CorrelationID,
		AppId:         connectionName,
		Type:          msg.Action,
		Headers: amqp.Table{
			headerClaimID:   msg.ClaimID,
			headerOutcome:   msg.Outcome.String(),
			headerActorRole: msg.ActorRole.String(),
			headerNoOp:      strconv.FormatBool(msg.NoOp),
		},
		Body: payload,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
