package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a claim.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// PaymentStatus tracks the payment pipeline of a completed claim.
type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentUnpaid, PaymentAuthorized, PaymentPaid:
		return true
	}
	return false
}

func ParsePaymentStatusFromString(s string) (PaymentStatus, error) {
	ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !ps.IsValid() {
		return "", fmt.Errorf("%w: invalid payment status %q", ErrValidation, s)
	}
	return ps, nil
}

// ClaimState is the part of a claim the transition validator looks at.
type ClaimState struct {
	Status        Status
	PaymentStatus PaymentStatus
}

func (s ClaimState) String() string {
	if s.Status == StatusCompleted {
		return fmt.Sprintf("%s/%s", s.Status, s.PaymentStatus)
	}
	return s.Status.String()
}

// Claim is an insurance/warranty repair claim.
type Claim struct {
	ID                string
	IMEI              string
	DeviceBrand       string
	DeviceModel       string
	CustomerID        string
	CustomerName      string
	ServiceCenterID   string
	ServiceCenterName string

	RepairCost     decimal.Decimal
	Commission     *decimal.Decimal
	PaymentStatus  PaymentStatus
	TransactionRef string

	Status          Status
	RejectionReason string

	SubmittedAt         time.Time
	StatusChangedAt     time.Time
	ApprovedAt          *time.Time
	RepairStartedAt     *time.Time
	CompletedAt         *time.Time
	PaymentAuthorizedAt *time.Time
	PaymentExecutedAt   *time.Time

	ApprovedBy          string
	RejectedBy          string
	PaymentAuthorizedBy string
	PaymentExecutedBy   string

	Version  int64
	Activity []ActivityEntry
}

// Submission carries the fields accepted from the IMEI/device intake.
type Submission struct {
	IMEI              string
	DeviceBrand       string
	DeviceModel       string
	CustomerID        string
	CustomerName      string
	ServiceCenterID   string
	ServiceCenterName string
	RepairCost        decimal.Decimal
}

// NewClaim builds a pending, unpaid claim from a validated submission.
func NewClaim(id string, sub Submission, now time.Time) (*Claim, error) {
	c := &Claim{
		ID:                strings.TrimSpace(id),
		IMEI:              strings.TrimSpace(sub.IMEI),
		DeviceBrand:       strings.TrimSpace(sub.DeviceBrand),
		DeviceModel:       strings.TrimSpace(sub.DeviceModel),
		CustomerID:        strings.TrimSpace(sub.CustomerID),
		CustomerName:      strings.TrimSpace(sub.CustomerName),
		ServiceCenterID:   strings.TrimSpace(sub.ServiceCenterID),
		ServiceCenterName: strings.TrimSpace(sub.ServiceCenterName),
		RepairCost:        sub.RepairCost,
		PaymentStatus:     PaymentUnpaid,
		Status:            StatusPending,
		SubmittedAt:       now,
		StatusChangedAt:   now,
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: claim id is required", ErrValidation)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Claim) State() ClaimState {
	return ClaimState{Status: c.Status, PaymentStatus: c.PaymentStatus}
}

// Validate checks the claim's field and lifecycle invariants.
func (c *Claim) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: claim is required", ErrValidation)
	}
	if err := ValidateIMEI(c.IMEI); err != nil {
		return err
	}

	required := []struct {
		name  string
		value string
	}{
		{"deviceBrand", c.DeviceBrand},
		{"deviceModel", c.DeviceModel},
		{"customerId", c.CustomerID},
		{"customerName", c.CustomerName},
		{"serviceCenterId", c.ServiceCenterID},
		{"serviceCenterName", c.ServiceCenterName},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field.name)
		}
	}

	if c.RepairCost.IsNegative() {
		return fmt.Errorf("%w: repairCost must be non-negative", ErrValidation)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, c.Status)
	}
	if !c.PaymentStatus.IsValid() {
		return fmt.Errorf("%w: invalid payment status %q", ErrValidation, c.PaymentStatus)
	}

	switch {
	case c.Status == StatusRejected && strings.TrimSpace(c.RejectionReason) == "":
		return fmt.Errorf("%w: rejected claim requires a rejection reason", ErrValidation)
	case c.Status != StatusRejected && c.RejectionReason != "":
		return fmt.Errorf("%w: rejection reason set on a %s claim", ErrValidation, c.Status)
	case c.PaymentStatus != PaymentUnpaid && c.Status != StatusCompleted:
		return fmt.Errorf("%w: payment status %s requires a completed claim", ErrValidation, c.PaymentStatus)
	case c.PaymentStatus == PaymentPaid && strings.TrimSpace(c.TransactionRef) == "":
		return fmt.Errorf("%w: paid claim requires a transaction reference", ErrValidation)
	}

	if c.Commission != nil {
		if c.Commission.IsNegative() {
			return fmt.Errorf("%w: commission must be non-negative", ErrValidation)
		}
		if c.Status == StatusPending || c.Status == StatusRejected {
			return fmt.Errorf("%w: commission set on a %s claim", ErrValidation, c.Status)
		}
	} else if c.Status != StatusPending && c.Status != StatusRejected {
		return fmt.Errorf("%w: %s claim is missing its commission", ErrValidation, c.Status)
	}

	return nil
}

// ValidateIMEI checks a 15-digit device identifier including its Luhn check digit.
func ValidateIMEI(imei string) error {
	imei = strings.TrimSpace(imei)
	if len(imei) != 15 {
		return fmt.Errorf("%w: imei must be 15 digits", ErrValidation)
	}

	sum := 0
	for i, r := range imei {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: imei must be 15 digits", ErrValidation)
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	if sum%10 != 0 {
		return fmt.Errorf("%w: imei check digit mismatch", ErrValidation)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	if c.Commission != nil {
		v := *c.Commission
		out.Commission = &v
	}
	out.ApprovedAt = cloneTime(c.ApprovedAt)
	out.RepairStartedAt = cloneTime(c.RepairStartedAt)
	out.CompletedAt = cloneTime(c.CompletedAt)
	out.PaymentAuthorizedAt = cloneTime(c.PaymentAuthorizedAt)
	out.PaymentExecutedAt = cloneTime(c.PaymentExecutedAt)
	out.Activity = append([]ActivityEntry(nil), c.Activity...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
