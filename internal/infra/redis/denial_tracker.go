package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/claim-workflow/internal/audit"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultDenialThreshold = 5
	defaultDenialWindow    = 5 * time.Minute
)

var _ audit.Sink = (*DenialTracker)(nil)

// DenialTracker counts denied transition attempts per actor and warns once
// an actor goes over the threshold inside one window.
type DenialTracker struct {
	window    fixedWindow
	threshold int64
	logger    *zap.Logger
}

func NewDenialTracker(client *goredis.Client, threshold int, window time.Duration, logger *zap.Logger) (*DenialTracker, error) {
	return newDenialTracker(client, int64(threshold), window, logger, time.Now)
}

func newDenialTracker(
	client *goredis.Client,
	threshold int64,
	window time.Duration,
	logger *zap.Logger,
	nowFn func() time.Time,
) (*DenialTracker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if threshold <= 0 {
		threshold = defaultDenialThreshold
	}
	if window < time.Second {
		window = defaultDenialWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &DenialTracker{
		window: fixedWindow{
			client: client,
			prefix: "denials:actor",
			size:   window,
			now:    nowFn,
		},
		threshold: threshold,
		logger:    logger,
	}, nil
}

func (t *DenialTracker) Name() string {
	return "redis-denials"
}

// Write ignores every outcome except denied attempts.
func (t *DenialTracker) Write(ctx context.Context, attempt domain.TransitionAttempt) error {
	if attempt.Outcome != domain.OutcomeDenied || attempt.ActorID == "" {
		return nil
	}

	count, err := t.window.incr(ctx, attempt.ActorID)
	if err != nil {
		return fmt.Errorf("failed to count denied attempt: %w", err)
	}

	if count > t.threshold {
		t.logger.Warn("actor exceeded denied transition threshold",
			zap.String("actorId", attempt.ActorID),
			zap.String("actorRole", attempt.ActorRole.String()),
			zap.Int64("deniedInWindow", count),
			zap.Int64("threshold", t.threshold),
			zap.String("lastAction", attempt.Action),
			zap.String("lastClaimId", attempt.ClaimID),
		)
	}
	return nil
}

// Count returns the denied attempts recorded for actorID in the current window.
func (t *DenialTracker) Count(ctx context.Context, actorID string) (int64, error) {
	n, err := t.window.current(ctx, actorID)
	if err != nil {
		return 0, fmt.Errorf("failed to read denied attempts: %w", err)
	}
	return n, nil
}
