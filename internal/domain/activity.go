package domain

import "time"

// ActionSubmit is the activity action recorded when a claim is created.
const ActionSubmit = "submit"

// ActivityEntry is one append-only line of a claim's history.
type ActivityEntry struct {
	ID                string
	ClaimID           string
	Action            string
	ActorID           string
	ActorRole         Role
	Detail            string
	FromStatus        Status
	ToStatus          Status
	FromPaymentStatus PaymentStatus
	ToPaymentStatus   PaymentStatus
	Timestamp         time.Time
}

// BulkFailure pairs a claim id with the reason its transition was not applied.
type BulkFailure struct {
	ClaimID string
	Reason  string
}

// BulkOperationResult reports every input id in exactly one of the two lists.
type BulkOperationResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

func (r BulkOperationResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}
