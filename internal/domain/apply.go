package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransitionInput carries the caller-supplied parameters of an accepted transition.
type TransitionInput struct {
	Transition     Transition
	ActorID        string
	ActorRole      Role
	Reason         string
	TransactionRef string
	// Commission is recorded only on approve.
	Commission decimal.Decimal
}

// ValidateInput checks fields a transition requires before any store access.
func ValidateInput(in TransitionInput) error {
	if !in.Transition.IsValid() {
		return fmt.Errorf("%w: invalid transition %q", ErrValidation, in.Transition)
	}
	if strings.TrimSpace(in.ActorID) == "" {
		return fmt.Errorf("%w: actor id is required", ErrValidation)
	}
	if in.Transition.RequiresReason() && strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: reason is required to reject a claim", ErrValidation)
	}
	if in.Transition.RequiresTransactionRef() && strings.TrimSpace(in.TransactionRef) == "" {
		return fmt.Errorf("%w: transactionRef is required to execute a payment", ErrValidation)
	}
	return nil
}

// Apply moves the claim to next, stamps the matching timestamp and appends
// exactly one activity entry. The claim is re-validated afterwards.
func (c *Claim) Apply(next ClaimState, in TransitionInput, entryID string, now time.Time) (ActivityEntry, error) {
	prev := c.State()
	detail := ""

	switch in.Transition {
	case TransitionApprove:
		if c.Commission != nil {
			return ActivityEntry{}, fmt.Errorf("%w: commission already recorded for claim %s", ErrValidation, c.ID)
		}
		commission := in.Commission
		c.Commission = &commission
		c.ApprovedAt = timePtr(now)
		c.ApprovedBy = in.ActorID
		detail = strings.TrimSpace(in.Reason)
	case TransitionReject:
		c.RejectionReason = strings.TrimSpace(in.Reason)
		c.RejectedBy = in.ActorID
		detail = c.RejectionReason
	case TransitionStartRepair:
		c.RepairStartedAt = timePtr(now)
		detail = strings.TrimSpace(in.Reason)
	case TransitionComplete:
		c.CompletedAt = timePtr(now)
		detail = strings.TrimSpace(in.Reason)
	case TransitionAuthorizePayment:
		c.PaymentAuthorizedAt = timePtr(now)
		c.PaymentAuthorizedBy = in.ActorID
		detail = strings.TrimSpace(in.Reason)
	case TransitionExecutePayment:
		c.TransactionRef = strings.TrimSpace(in.TransactionRef)
		c.PaymentExecutedAt = timePtr(now)
		c.PaymentExecutedBy = in.ActorID
		detail = c.TransactionRef
	default:
		return ActivityEntry{}, fmt.Errorf("%w: invalid transition %q", ErrValidation, in.Transition)
	}

	c.Status = next.Status
	c.PaymentStatus = next.PaymentStatus
	c.StatusChangedAt = now

	entry := ActivityEntry{
		ID:                entryID,
		ClaimID:           c.ID,
		Action:            in.Transition.String(),
		ActorID:           in.ActorID,
		ActorRole:         in.ActorRole,
		Detail:            detail,
		FromStatus:        prev.Status,
		ToStatus:          next.Status,
		FromPaymentStatus: prev.PaymentStatus,
		ToPaymentStatus:   next.PaymentStatus,
		Timestamp:         now,
	}
	c.Activity = append(c.Activity, entry)

	if err := c.Validate(); err != nil {
		return ActivityEntry{}, err
	}
	return entry, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
