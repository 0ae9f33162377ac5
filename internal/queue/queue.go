package queue

import (
	"context"
	"fmt"
)

// Publisher publishes activity messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ActivityMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg ActivityMessage) error

// Consumer consumes activity messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// ActivityQueue carries every transition attempt emitted by the engine.
	ActivityQueue = "claims.activity"

	activityRoutingKey = "activity"
)

// DLQName returns the dead-letter queue name for a queue, e.g. dlq.claims.activity.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}
