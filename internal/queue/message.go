package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
)

// ActivityMessage is the broker payload for one transition attempt.
type ActivityMessage struct {
	AttemptID         string               `json:"attemptId"`
	CorrelationID     string               `json:"correlationId,omitempty"`
	ClaimID           string               `json:"claimId"`
	Action            string               `json:"action"`
	ActorID           string               `json:"actorId"`
	ActorRole         domain.Role          `json:"actorRole"`
	Outcome           domain.Outcome       `json:"outcome"`
	Reason            string               `json:"reason,omitempty"`
	NoOp              bool                 `json:"noOp,omitempty"`
	Detail            string               `json:"detail,omitempty"`
	FromStatus        domain.Status        `json:"fromStatus,omitempty"`
	ToStatus          domain.Status        `json:"toStatus,omitempty"`
	FromPaymentStatus domain.PaymentStatus `json:"fromPaymentStatus,omitempty"`
	ToPaymentStatus   domain.PaymentStatus `json:"toPaymentStatus,omitempty"`
	OccurredAt        time.Time            `json:"occurredAt"`
}

func (m ActivityMessage) Validate() error {
	if strings.TrimSpace(m.AttemptID) == "" {
		return fmt.Errorf("attemptId is required")
	}
	if strings.TrimSpace(m.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if !m.Outcome.IsValid() {
		return fmt.Errorf("invalid outcome %q", m.Outcome)
	}
	if m.OccurredAt.IsZero() {
		return fmt.Errorf("occurredAt is required")
	}
	return nil
}

func NewActivityMessage(a domain.TransitionAttempt) ActivityMessage {
	return ActivityMessage{
		AttemptID:         a.ID,
		CorrelationID:     a.CorrelationID,
		ClaimID:           a.ClaimID,
		Action:            a.Action,
		ActorID:           a.ActorID,
		ActorRole:         a.ActorRole,
		Outcome:           a.Outcome,
		Reason:            a.Reason,
		NoOp:              a.NoOp,
		Detail:            a.Detail,
		FromStatus:        a.FromStatus,
		ToStatus:          a.ToStatus,
		FromPaymentStatus: a.FromPaymentStatus,
		ToPaymentStatus:   a.ToPaymentStatus,
		OccurredAt:        a.OccurredAt,
	}
}

func (m ActivityMessage) Attempt() domain.TransitionAttempt {
	return domain.TransitionAttempt{
		ID:                m.AttemptID,
		CorrelationID:     m.CorrelationID,
		ClaimID:           m.ClaimID,
		Action:            m.Action,
		ActorID:           m.ActorID,
		ActorRole:         m.ActorRole,
		Outcome:           m.Outcome,
		Reason:            m.Reason,
		NoOp:              m.NoOp,
		Detail:            m.Detail,
		FromStatus:        m.FromStatus,
		ToStatus:          m.ToStatus,
		FromPaymentStatus: m.FromPaymentStatus,
		ToPaymentStatus:   m.ToPaymentStatus,
		OccurredAt:        m.OccurredAt,
	}
}
