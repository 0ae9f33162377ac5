package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"go.uber.org/zap"
)

// PaymentService drives the payment half of the lifecycle for completed
// claims. It always acts as the sentinel admin role; callers holding another
// role go through the WorkflowService directly and are denied there.
type PaymentService struct {
	workflow *WorkflowService
	logger   *zap.Logger
}

func NewPaymentService(workflow *WorkflowService, logger *zap.Logger) (*PaymentService, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PaymentService{
		workflow: workflow,
		logger:   logger,
	}, nil
}

func (s *PaymentService) AuthorizePayment(ctx context.Context, claimID string, actorID string) (*domain.Claim, error) {
	return s.workflow.RequestTransition(ctx, TransitionRequest{
		ClaimID:    claimID,
		Transition: domain.TransitionAuthorizePayment,
		ActorID:    actorID,
		ActorRole:  domain.RoleSentinelAdmin,
	})
}

func (s *PaymentService) AuthorizePayments(ctx context.Context, claimIDs []string, actorID string) domain.BulkOperationResult {
	return s.workflow.RequestBulkTransition(ctx, BulkTransitionRequest{
		ClaimIDs:   claimIDs,
		Transition: domain.TransitionAuthorizePayment,
		ActorID:    actorID,
		ActorRole:  domain.RoleSentinelAdmin,
	})
}

func (s *PaymentService) ExecutePayment(ctx context.Context, claimID string, actorID string, transactionRef string) (*domain.Claim, error) {
	return s.workflow.RequestTransition(ctx, TransitionRequest{
		ClaimID:        claimID,
		Transition:     domain.TransitionExecutePayment,
		ActorID:        actorID,
		ActorRole:      domain.RoleSentinelAdmin,
		TransactionRef: transactionRef,
	})
}

// ExecutePayments records one disbursement batch: every claim receives the
// same transaction reference. Claims paid under separate references must go
// through ExecutePayment one at a time.
func (s *PaymentService) ExecutePayments(ctx context.Context, claimIDs []string, actorID string, transactionRef string) (domain.BulkOperationResult, error) {
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return domain.BulkOperationResult{}, fmt.Errorf("%w: transactionRef is required to execute payments", domain.ErrValidation)
	}

	result := s.workflow.RequestBulkTransition(ctx, BulkTransitionRequest{
		ClaimIDs:       claimIDs,
		Transition:     domain.TransitionExecutePayment,
		ActorID:        actorID,
		ActorRole:      domain.RoleSentinelAdmin,
		TransactionRef: ref,
	})

	s.logger.Info("payment batch executed",
		zap.String("transactionRef", ref),
		zap.Int("paid", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}
