package repository

import (
	"time"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/shopspring/decimal"
)

// ClaimModel is the persistence model for the claims table.
type ClaimModel struct {
	ID                  string               `gorm:"type:varchar(64);primaryKey"`
	IMEI                string               `gorm:"column:imei;type:varchar(15);not null"`
	DeviceBrand         string               `gorm:"type:varchar(100);not null"`
	DeviceModel         string               `gorm:"type:varchar(100);not null"`
	CustomerID          string               `gorm:"type:varchar(64);not null"`
	CustomerName        string               `gorm:"type:varchar(255);not null"`
	ServiceCenterID     string               `gorm:"type:varchar(64);not null"`
	ServiceCenterName   string               `gorm:"type:varchar(255);not null"`
	RepairCost          decimal.Decimal      `gorm:"type:numeric(14,2);not null"`
	Commission          decimal.NullDecimal  `gorm:"type:numeric(14,2)"`
	Status              domain.Status        `gorm:"type:varchar(20);not null"`
	PaymentStatus       domain.PaymentStatus `gorm:"type:varchar(20);not null"`
	RejectionReason     *string              `gorm:"type:text"`
	TransactionRef      *string              `gorm:"type:varchar(255)"`
	SubmittedAt         time.Time            `gorm:"not null"`
	StatusChangedAt     time.Time            `gorm:"not null"`
	ApprovedAt          *time.Time
	RepairStartedAt     *time.Time
	CompletedAt         *time.Time
	PaymentAuthorizedAt *time.Time
	PaymentExecutedAt   *time.Time
	ApprovedBy          *string `gorm:"type:varchar(64)"`
	RejectedBy          *string `gorm:"type:varchar(64)"`
	PaymentAuthorizedBy *string `gorm:"type:varchar(64)"`
	PaymentExecutedBy   *string `gorm:"type:varchar(64)"`
	Version             int64   `gorm:"not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (ClaimModel) TableName() string {
	return "claims"
}

// ClaimActivityModel is one append-only row of claim_activity.
type ClaimActivityModel struct {
	ID                string               `gorm:"type:varchar(64);primaryKey"`
	ClaimID           string               `gorm:"type:varchar(64);not null;index"`
	Position          int                  `gorm:"not null"`
	Action            string               `gorm:"type:varchar(32);not null"`
	ActorID           string               `gorm:"type:varchar(64);not null"`
	ActorRole         domain.Role          `gorm:"type:varchar(64);not null"`
	Detail            *string              `gorm:"type:text"`
	FromStatus        domain.Status        `gorm:"type:varchar(20)"`
	ToStatus          domain.Status        `gorm:"type:varchar(20);not null"`
	FromPaymentStatus domain.PaymentStatus `gorm:"type:varchar(20)"`
	ToPaymentStatus   domain.PaymentStatus `gorm:"type:varchar(20);not null"`
	OccurredAt        time.Time            `gorm:"not null"`
}

func (ClaimActivityModel) TableName() string {
	return "claim_activity"
}

// TransitionAttemptModel is the persistence model for transition_attempts.
type TransitionAttemptModel struct {
	ID                string               `gorm:"type:varchar(64);primaryKey"`
	CorrelationID     *string              `gorm:"type:varchar(64)"`
	ClaimID           string               `gorm:"type:varchar(64);not null"`
	Action            string               `gorm:"type:varchar(32);not null"`
	ActorID           string               `gorm:"type:varchar(64);not null"`
	ActorRole         domain.Role          `gorm:"type:varchar(64);not null"`
	Outcome           domain.Outcome       `gorm:"type:varchar(16);not null"`
	Reason            *string              `gorm:"type:text"`
	NoOp              bool                 `gorm:"column:no_op;not null"`
	Detail            *string              `gorm:"type:text"`
	FromStatus        domain.Status        `gorm:"type:varchar(20)"`
	ToStatus          domain.Status        `gorm:"type:varchar(20)"`
	FromPaymentStatus domain.PaymentStatus `gorm:"type:varchar(20)"`
	ToPaymentStatus   domain.PaymentStatus `gorm:"type:varchar(20)"`
	OccurredAt        time.Time            `gorm:"not null"`
	CreatedAt         time.Time
}

func (TransitionAttemptModel) TableName() string {
	return "transition_attempts"
}

func claimModelFromDomain(c *domain.Claim) *ClaimModel {
	if c == nil {
		return nil
	}

	m := &ClaimModel{
		ID:                  c.ID,
		IMEI:                c.IMEI,
		DeviceBrand:         c.DeviceBrand,
		DeviceModel:         c.DeviceModel,
		CustomerID:          c.CustomerID,
		CustomerName:        c.CustomerName,
		ServiceCenterID:     c.ServiceCenterID,
		ServiceCenterName:   c.ServiceCenterName,
		RepairCost:          c.RepairCost,
		Status:              c.Status,
		PaymentStatus:       c.PaymentStatus,
		RejectionReason:     optionalString(c.RejectionReason),
		TransactionRef:      optionalString(c.TransactionRef),
		SubmittedAt:         c.SubmittedAt,
		StatusChangedAt:     c.StatusChangedAt,
		ApprovedAt:          c.ApprovedAt,
		RepairStartedAt:     c.RepairStartedAt,
		CompletedAt:         c.CompletedAt,
		PaymentAuthorizedAt: c.PaymentAuthorizedAt,
		PaymentExecutedAt:   c.PaymentExecutedAt,
		ApprovedBy:          optionalString(c.ApprovedBy),
		RejectedBy:          optionalString(c.RejectedBy),
		PaymentAuthorizedBy: optionalString(c.PaymentAuthorizedBy),
		PaymentExecutedBy:   optionalString(c.PaymentExecutedBy),
		Version:             c.Version,
	}
	if c.Commission != nil {
		m.Commission = decimal.NullDecimal{Decimal: *c.Commission, Valid: true}
	}
	return m
}

func claimModelToDomain(m *ClaimModel) *domain.Claim {
	if m == nil {
		return nil
	}

	c := &domain.Claim{
		ID:                  m.ID,
		IMEI:                m.IMEI,
		DeviceBrand:         m.DeviceBrand,
		DeviceModel:         m.DeviceModel,
		CustomerID:          m.CustomerID,
		CustomerName:        m.CustomerName,
		ServiceCenterID:     m.ServiceCenterID,
		ServiceCenterName:   m.ServiceCenterName,
		RepairCost:          m.RepairCost,
		Status:              m.Status,
		PaymentStatus:       m.PaymentStatus,
		RejectionReason:     derefString(m.RejectionReason),
		TransactionRef:      derefString(m.TransactionRef),
		SubmittedAt:         m.SubmittedAt,
		StatusChangedAt:     m.StatusChangedAt,
		ApprovedAt:          m.ApprovedAt,
		RepairStartedAt:     m.RepairStartedAt,
		CompletedAt:         m.CompletedAt,
		PaymentAuthorizedAt: m.PaymentAuthorizedAt,
		PaymentExecutedAt:   m.PaymentExecutedAt,
		ApprovedBy:          derefString(m.ApprovedBy),
		RejectedBy:          derefString(m.RejectedBy),
		PaymentAuthorizedBy: derefString(m.PaymentAuthorizedBy),
		PaymentExecutedBy:   derefString(m.PaymentExecutedBy),
		Version:             m.Version,
	}
	if m.Commission.Valid {
		commission := m.Commission.Decimal
		c.Commission = &commission
	}
	return c
}

func activityModelFromDomain(e domain.ActivityEntry, position int) ClaimActivityModel {
	return ClaimActivityModel{
		ID:                e.ID,
		ClaimID:           e.ClaimID,
		Position:          position,
		Action:            e.Action,
		ActorID:           e.ActorID,
		ActorRole:         e.ActorRole,
		Detail:            optionalString(e.Detail),
		FromStatus:        e.FromStatus,
		ToStatus:          e.ToStatus,
		FromPaymentStatus: e.FromPaymentStatus,
		ToPaymentStatus:   e.ToPaymentStatus,
		OccurredAt:        e.Timestamp,
	}
}

func activityModelToDomain(m *ClaimActivityModel) domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:                m.ID,
		ClaimID:           m.ClaimID,
		Action:            m.Action,
		ActorID:           m.ActorID,
		ActorRole:         m.ActorRole,
		Detail:            derefString(m.Detail),
		FromStatus:        m.FromStatus,
		ToStatus:          m.ToStatus,
		FromPaymentStatus: m.FromPaymentStatus,
		ToPaymentStatus:   m.ToPaymentStatus,
		Timestamp:         m.OccurredAt,
	}
}

func attemptModelFromDomain(a *domain.TransitionAttempt) *TransitionAttemptModel {
	if a == nil {
		return nil
	}

	return &TransitionAttemptModel{
		ID:                a.ID,
		CorrelationID:     optionalString(a.CorrelationID),
		ClaimID:           a.ClaimID,
		Action:            a.Action,
		ActorID:           a.ActorID,
		ActorRole:         a.ActorRole,
		Outcome:           a.Outcome,
		Reason:            optionalString(a.Reason),
		NoOp:              a.NoOp,
		Detail:            optionalString(a.Detail),
		FromStatus:        a.FromStatus,
		ToStatus:          a.ToStatus,
		FromPaymentStatus: a.FromPaymentStatus,
		ToPaymentStatus:   a.ToPaymentStatus,
		OccurredAt:        a.OccurredAt,
	}
}

func attemptModelToDomain(m *TransitionAttemptModel) *domain.TransitionAttempt {
	if m == nil {
		return nil
	}

	return &domain.TransitionAttempt{
		ID:                m.ID,
		CorrelationID:     derefString(m.CorrelationID),
		ClaimID:           m.ClaimID,
		Action:            m.Action,
		ActorID:           m.ActorID,
		ActorRole:         m.ActorRole,
		Outcome:           m.Outcome,
		Reason:            derefString(m.Reason),
		NoOp:              m.NoOp,
		Detail:            derefString(m.Detail),
		FromStatus:        m.FromStatus,
		ToStatus:          m.ToStatus,
		FromPaymentStatus: m.FromPaymentStatus,
		ToPaymentStatus:   m.ToPaymentStatus,
		OccurredAt:        m.OccurredAt,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
