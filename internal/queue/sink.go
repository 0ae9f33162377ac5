package queue

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
)

// ActivitySink forwards transition attempts to the activity queue.
type ActivitySink struct {
	publisher Publisher
	queue     string
}

func NewActivitySink(publisher Publisher) *ActivitySink {
	return &ActivitySink{publisher: publisher, queue: ActivityQueue}
}

func (s *ActivitySink) Name() string {
	return "rabbitmq"
}

func (s *ActivitySink) Write(ctx context.Context, attempt domain.TransitionAttempt) error {
	if s == nil || s.publisher == nil {
		return fmt.Errorf("activity sink is not initialized")
	}
	return s.publisher.Publish(ctx, s.queue, NewActivityMessage(attempt))
}
