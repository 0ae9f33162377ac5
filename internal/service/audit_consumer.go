package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"github.com/kursadbilgin/claim-workflow/internal/queue"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minAuditWorkers = 1

// AuditConsumer drains the activity queue into the transition_attempts
// security log. A message is acked only after its row is stored.
type AuditConsumer struct {
	attempts    repository.AttemptRepository
	consumer    queue.Consumer
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewAuditConsumer(
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
) (*AuditConsumer, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if concurrency < minAuditWorkers {
		concurrency = minAuditWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuditConsumer{
		attempts:    attempts,
		consumer:    consumer,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

func (s *AuditConsumer) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs the workers until ctx is cancelled or one of them fails.
func (s *AuditConsumer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("audit worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.ActivityQueue),
			)

			if err := s.consumer.Consume(groupCtx, queue.ActivityQueue, s.processMessage); err != nil {
				s.logger.Error("audit worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("audit worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *AuditConsumer) processMessage(ctx context.Context, msg queue.ActivityMessage) error {
	attempt := msg.Attempt()
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return fmt.Errorf("failed to persist transition attempt %s: %w", msg.AttemptID, err)
	}

	s.metrics.IncAuditRecordPersisted(attempt.Outcome.String())
	return nil
}
