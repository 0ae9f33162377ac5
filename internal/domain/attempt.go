package domain

import "time"

// Outcome classifies how a transition attempt ended.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDenied   Outcome = "denied"
	OutcomeFailed   Outcome = "failed"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeAccepted, OutcomeDenied, OutcomeFailed:
		return true
	}
	return false
}

// TransitionAttempt is the security-log record of one engine call, whether
// it was applied or not. Accepted attempts mirror an ActivityEntry.
type TransitionAttempt struct {
	ID                string
	CorrelationID     string
	ClaimID           string
	Action            string
	ActorID           string
	ActorRole         Role
	Outcome           Outcome
	Reason            string
	NoOp              bool
	Detail            string
	FromStatus        Status
	ToStatus          Status
	FromPaymentStatus PaymentStatus
	ToPaymentStatus   PaymentStatus
	OccurredAt        time.Time
}

// AttemptFromEntry builds the accepted attempt for an applied activity entry.
func AttemptFromEntry(id string, entry ActivityEntry) TransitionAttempt {
	return TransitionAttempt{
		ID:                id,
		ClaimID:           entry.ClaimID,
		Action:            entry.Action,
		ActorID:           entry.ActorID,
		ActorRole:         entry.ActorRole,
		Outcome:           OutcomeAccepted,
		Detail:            entry.Detail,
		FromStatus:        entry.FromStatus,
		ToStatus:          entry.ToStatus,
		FromPaymentStatus: entry.FromPaymentStatus,
		ToPaymentStatus:   entry.ToPaymentStatus,
		OccurredAt:        entry.Timestamp,
	}
}
