package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/claim-workflow/internal/audit"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBulkConcurrency = 8
	commissionPlaces       = 2
)

var defaultCommissionRate = decimal.RequireFromString("0.10")

// TransitionRequest is one caller-initiated transition of a single claim.
type TransitionRequest struct {
	ClaimID        string
	Transition     domain.Transition
	ActorID        string
	ActorRole      domain.Role
	Reason         string
	TransactionRef string
}

// BulkTransitionRequest applies the same transition to every id in ClaimIDs.
type BulkTransitionRequest struct {
	ClaimIDs       []string
	Transition     domain.Transition
	ActorID        string
	ActorRole      domain.Role
	Reason         string
	TransactionRef string
}

func (r BulkTransitionRequest) item(claimID string) TransitionRequest {
	return TransitionRequest{
		ClaimID:        claimID,
		Transition:     r.Transition,
		ActorID:        r.ActorID,
		ActorRole:      r.ActorRole,
		Reason:         r.Reason,
		TransactionRef: r.TransactionRef,
	}
}

type WorkflowOptions struct {
	CommissionRate  decimal.Decimal
	BulkConcurrency int
}

// WorkflowService is the only writer of claim state. It holds no claim
// cache; every call re-reads the store.
type WorkflowService struct {
	claims          repository.ClaimRepository
	emitter         *audit.Emitter
	metrics         *observability.Metrics
	logger          *zap.Logger
	commissionRate  decimal.Decimal
	bulkConcurrency int
	now             func() time.Time
	newID           func() string
}

func NewWorkflowService(
	claims repository.ClaimRepository,
	emitter *audit.Emitter,
	opts WorkflowOptions,
	logger *zap.Logger,
) (*WorkflowService, error) {
	if claims == nil {
		return nil, fmt.Errorf("claim repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rate := opts.CommissionRate
	if rate.IsZero() {
		rate = defaultCommissionRate
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: commission rate must be between 0 and 1, got %s", domain.ErrValidation, rate)
	}

	concurrency := opts.BulkConcurrency
	if concurrency < 1 {
		concurrency = defaultBulkConcurrency
	}

	return &WorkflowService{
		claims:          claims,
		emitter:         emitter,
		logger:          logger,
		commissionRate:  rate,
		bulkConcurrency: concurrency,
		now:             time.Now,
		newID:           uuid.NewString,
	}, nil
}

func (s *WorkflowService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Submit creates a pending, unpaid claim with its first activity entry.
func (s *WorkflowService) Submit(ctx context.Context, sub domain.Submission, actorID string, role domain.Role) (*domain.Claim, error) {
	attempt := domain.TransitionAttempt{
		Action:    domain.ActionSubmit,
		ActorID:   actorID,
		ActorRole: role,
	}

	claim, err := s.submit(ctx, sub, actorID, role)
	if err != nil {
		attempt.Outcome = domain.OutcomeFailed
		attempt.Reason = domain.FailureReason(err)
		s.emitter.Emit(ctx, attempt)
		return nil, err
	}

	s.emitter.Emit(ctx, domain.AttemptFromEntry(s.newID(), claim.Activity[len(claim.Activity)-1]))
	return claim, nil
}

func (s *WorkflowService) submit(ctx context.Context, sub domain.Submission, actorID string, role domain.Role) (*domain.Claim, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: actor id is required", domain.ErrValidation)
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", domain.ErrValidation, role)
	}

	now := s.now().UTC()
	claim, err := domain.NewClaim(s.newID(), sub, now)
	if err != nil {
		return nil, err
	}

	claim.Activity = append(claim.Activity, domain.ActivityEntry{
		ID:              s.newID(),
		ClaimID:         claim.ID,
		Action:          domain.ActionSubmit,
		ActorID:         strings.TrimSpace(actorID),
		ActorRole:       role,
		ToStatus:        claim.Status,
		ToPaymentStatus: claim.PaymentStatus,
		Timestamp:       now,
	})

	if err := s.claims.Save(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *WorkflowService) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: claim id is required", domain.ErrValidation)
	}
	return s.claims.Get(ctx, id)
}

func (s *WorkflowService) ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, int64, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, *filter.Status)
	}
	if filter.PaymentStatus != nil && !filter.PaymentStatus.IsValid() {
		return nil, 0, fmt.Errorf("%w: invalid payment status %q", domain.ErrValidation, *filter.PaymentStatus)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrValidation)
	}
	return s.claims.Query(ctx, filter)
}

func (s *WorkflowService) ListActivity(ctx context.Context, claimID string) ([]domain.ActivityEntry, error) {
	if strings.TrimSpace(claimID) == "" {
		return nil, fmt.Errorf("%w: claim id is required", domain.ErrValidation)
	}
	return s.claims.ListActivity(ctx, claimID)
}

// RequestTransition validates and applies one transition. Denials return
// *domain.InvalidTransitionError and leave the store untouched. Every call,
// whatever its outcome, is handed to the audit emitter.
func (s *WorkflowService) RequestTransition(ctx context.Context, req TransitionRequest) (*domain.Claim, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := s.now()
	claim, attempt, err := s.requestTransition(ctx, req)
	s.metrics.ObserveTransition(req.Transition.String(), attempt.Outcome.String(), s.now().Sub(start))
	s.emitter.Emit(ctx, attempt)

	return claim, err
}

func (s *WorkflowService) requestTransition(ctx context.Context, req TransitionRequest) (*domain.Claim, domain.TransitionAttempt, error) {
	attempt := domain.TransitionAttempt{
		ClaimID:   req.ClaimID,
		Action:    req.Transition.String(),
		ActorID:   req.ActorID,
		ActorRole: req.ActorRole,
	}
	failed := func(err error) (*domain.Claim, domain.TransitionAttempt, error) {
		attempt.Outcome = domain.OutcomeFailed
		attempt.Reason = domain.FailureReason(err)
		return nil, attempt, err
	}

	in := domain.TransitionInput{
		Transition:     req.Transition,
		ActorID:        strings.TrimSpace(req.ActorID),
		ActorRole:      req.ActorRole,
		Reason:         req.Reason,
		TransactionRef: req.TransactionRef,
	}
	if strings.TrimSpace(req.ClaimID) == "" {
		return failed(fmt.Errorf("%w: claim id is required", domain.ErrValidation))
	}
	if err := domain.ValidateInput(in); err != nil {
		return failed(err)
	}

	claim, err := s.claims.Get(ctx, req.ClaimID)
	if err != nil {
		return failed(err)
	}

	current := claim.State()
	attempt.FromStatus = current.Status
	attempt.FromPaymentStatus = current.PaymentStatus

	decision := domain.ValidateTransition(current, req.Transition, req.ActorRole)
	if !decision.Allowed {
		attempt.Outcome = domain.OutcomeDenied
		attempt.Reason = decision.Reason
		attempt.NoOp = decision.NoOp
		return nil, attempt, &domain.InvalidTransitionError{
			ClaimID:    claim.ID,
			Transition: req.Transition,
			From:       current,
			Role:       req.ActorRole,
			Reason:     decision.Reason,
			NoOp:       decision.NoOp,
		}
	}

	if req.Transition == domain.TransitionApprove {
		in.Commission = s.commission(claim.RepairCost)
	}

	entry, err := claim.Apply(decision.Next, in, s.newID(), s.now().UTC())
	if err != nil {
		return failed(err)
	}
	if err := s.claims.Save(ctx, claim); err != nil {
		return failed(err)
	}

	return claim, domain.AttemptFromEntry(s.newID(), entry), nil
}

// RequestBulkTransition runs the transition for every id independently on a
// bounded worker pool. Repeated ids are handled one after another by the same
// worker. Once ctx is cancelled, items already running finish and the rest
// are reported as cancelled.
func (s *WorkflowService) RequestBulkTransition(ctx context.Context, req BulkTransitionRequest) domain.BulkOperationResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := domain.BulkOperationResult{
		Succeeded: make([]string, 0, len(req.ClaimIDs)),
		Failed:    make([]domain.BulkFailure, 0),
	}
	if len(req.ClaimIDs) == 0 {
		return result
	}

	order := make([]string, 0, len(req.ClaimIDs))
	positions := make(map[string][]int, len(req.ClaimIDs))
	for i, id := range req.ClaimIDs {
		if _, seen := positions[id]; !seen {
			order = append(order, id)
		}
		positions[id] = append(positions[id], i)
	}

	errs := make([]error, len(req.ClaimIDs))
	transition := req.Transition.String()
	itemCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for _, id := range order {
		indexes := positions[id]
		if ctx.Err() != nil {
			markCancelled(errs, indexes)
			continue
		}

		g.Go(func() error {
			for n, idx := range indexes {
				if ctx.Err() != nil {
					markCancelled(errs, indexes[n:])
					return nil
				}

				s.metrics.IncBulkInFlight(transition)
				_, errs[idx] = s.RequestTransition(itemCtx, req.item(id))
				s.metrics.DecBulkInFlight(transition)
			}
			return nil
		})
	}
	_ = g.Wait()

	cancelled := 0
	for i, id := range req.ClaimIDs {
		if errs[i] == nil {
			result.Succeeded = append(result.Succeeded, id)
			s.metrics.IncBulkItem(transition, "succeeded")
			continue
		}
		if errors.Is(errs[i], context.Canceled) {
			cancelled++
		}
		result.Failed = append(result.Failed, domain.BulkFailure{
			ClaimID: id,
			Reason:  domain.FailureReason(errs[i]),
		})
		s.metrics.IncBulkItem(transition, "failed")
	}

	if cancelled > 0 {
		s.logger.Warn("bulk transition cancelled before completion",
			zap.String("transition", transition),
			zap.Int("cancelled", cancelled),
			zap.Int("total", len(req.ClaimIDs)),
		)
	}

	s.logger.Info("bulk transition finished",
		zap.String("transition", transition),
		zap.String("actorId", req.ActorID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)

	return result
}

func (s *WorkflowService) commission(repairCost decimal.Decimal) decimal.Decimal {
	return repairCost.Mul(s.commissionRate).Round(commissionPlaces)
}

func markCancelled(errs []error, indexes []int) {
	for _, idx := range indexes {
		errs[idx] = context.Canceled
	}
}

