package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultSinkTimeout = 2 * time.Second
	defaultBufferSize  = 1024
	defaultWorkers     = 4

	// droppedSink labels records that never reached any sink.
	droppedSink = "buffer"
)

var ErrEmitterClosed = errors.New("audit emitter is closed")

// Sink accepts an append-only stream of transition attempts.
type Sink interface {
	Name() string
	Write(ctx context.Context, attempt domain.TransitionAttempt) error
}

type EmitterOptions struct {
	SinkTimeout time.Duration
	BufferSize  int
	Workers     int
}

// Emitter records every transition attempt. Emit writes one log line and
// queues the attempt; background workers deliver it to every sink. A full
// queue drops the attempt. Sink errors are logged and counted, never
// returned to the caller.
type Emitter struct {
	logger      *zap.Logger
	metrics     *observability.Metrics
	sinkTimeout time.Duration
	sinks       []Sink
	now         func() time.Time

	queue   chan domain.TransitionAttempt
	workers sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending int
	idle    chan struct{}
}

func NewEmitter(logger *zap.Logger, metrics *observability.Metrics, opts EmitterOptions, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}

	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}

	e := &Emitter{
		logger:      logger,
		metrics:     metrics,
		sinkTimeout: opts.SinkTimeout,
		sinks:       active,
		now:         time.Now,
		queue:       make(chan domain.TransitionAttempt, opts.BufferSize),
	}

	e.workers.Add(opts.Workers)
	for range opts.Workers {
		go e.run()
	}

	return e
}

// Emit never waits on a sink.
func (e *Emitter) Emit(ctx context.Context, attempt domain.TransitionAttempt) {
	if e == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CorrelationID == "" {
		if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
			attempt.CorrelationID = correlationID
		}
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = e.now().UTC()
	}

	e.log(attempt)

	if len(e.sinks) == 0 {
		return
	}
	if err := e.enqueue(attempt); err != nil {
		e.metrics.IncAuditSinkFailure(droppedSink)
		e.logger.Warn("audit record dropped",
			zap.String("attemptId", attempt.ID),
			zap.String("claimId", attempt.ClaimID),
			zap.String("action", attempt.Action),
			zap.Error(err),
		)
	}
}

func (e *Emitter) enqueue(attempt domain.TransitionAttempt) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEmitterClosed
	}

	select {
	case e.queue <- attempt:
	default:
		return fmt.Errorf("audit buffer full (%d records)", cap(e.queue))
	}

	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending++
	return nil
}

// Flush waits until every queued attempt has been handed to the sinks.
func (e *Emitter) Flush(ctx context.Context) error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	if e.pending == 0 {
		e.mu.Unlock()
		return nil
	}
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting attempts and waits for the workers to drain the
// queue or for ctx to expire.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit emitter drain: %w", ctx.Err())
	}
}

func (e *Emitter) run() {
	defer e.workers.Done()

	for attempt := range e.queue {
		e.deliver(attempt)
		e.settle()
	}
}

func (e *Emitter) deliver(attempt domain.TransitionAttempt) {
	var wg sync.WaitGroup
	for _, sink := range e.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.write(context.Background(), sink, attempt)
		}()
	}
	wg.Wait()
}

func (e *Emitter) settle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending--
	if e.pending == 0 {
		close(e.idle)
	}
}

func (e *Emitter) write(ctx context.Context, sink Sink, attempt domain.TransitionAttempt) {
	sinkCtx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sink.Write(sinkCtx, attempt)
	}()

	var err error
	select {
	case err = <-done:
	case <-sinkCtx.Done():
		err = sinkCtx.Err()
	}
	if err == nil {
		return
	}

	e.metrics.IncAuditSinkFailure(sink.Name())
	e.logger.Warn("audit sink write failed",
		zap.String("sink", sink.Name()),
		zap.String("attemptId", attempt.ID),
		zap.String("claimId", attempt.ClaimID),
		zap.String("action", attempt.Action),
		zap.Error(err),
	)
}

func (e *Emitter) log(a domain.TransitionAttempt) {
	fields := []zap.Field{
		zap.String("attemptId", a.ID),
		zap.String("claimId", a.ClaimID),
		zap.String("action", a.Action),
		zap.String("actorId", a.ActorID),
		zap.String("actorRole", a.ActorRole.String()),
		zap.String("outcome", a.Outcome.String()),
		zap.Time("occurredAt", a.OccurredAt),
	}
	if a.CorrelationID != "" {
		fields = append(fields, zap.String("correlationId", a.CorrelationID))
	}
	if a.FromStatus != "" {
		fields = append(fields,
			zap.String("fromStatus", a.FromStatus.String()),
			zap.String("fromPaymentStatus", a.FromPaymentStatus.String()),
		)
	}
	if a.Outcome == domain.OutcomeAccepted {
		fields = append(fields,
			zap.String("toStatus", a.ToStatus.String()),
			zap.String("toPaymentStatus", a.ToPaymentStatus.String()),
		)
	}
	if a.Detail != "" {
		fields = append(fields, zap.String("detail", a.Detail))
	}
	if a.Reason != "" {
		fields = append(fields, zap.String("reason", a.Reason))
	}
	if a.NoOp {
		fields = append(fields, zap.Bool("noOp", true))
	}

	switch a.Outcome {
	case domain.OutcomeDenied:
		e.logger.Warn("claim transition denied", fields...)
	case domain.OutcomeFailed:
		e.logger.Error("claim transition failed", fields...)
	default:
		e.logger.Info("claim transition applied", fields...)
	}
}
