package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// ClaimFilter narrows Query results. Zero-valued fields are ignored.
type ClaimFilter struct {
	Status          *domain.Status
	PaymentStatus   *domain.PaymentStatus
	ServiceCenterID string
	CustomerID      string
	Limit           int
	Offset          int
}

// ClaimRepository is the record store the workflow engine runs against.
// Save performs an optimistic version check: a claim loaded at version N
// only persists if the stored row is still at version N.
type ClaimRepository interface {
	Get(ctx context.Context, id string) (*domain.Claim, error)
	Save(ctx context.Context, c *domain.Claim) error
	Query(ctx context.Context, filter ClaimFilter) ([]domain.Claim, int64, error)
	ListActivity(ctx context.Context, claimID string) ([]domain.ActivityEntry, error)
}

type GormClaimRepo struct {
	db *gorm.DB
}

func NewGormClaimRepo(db *gorm.DB) *GormClaimRepo {
	return &GormClaimRepo{db: db}
}

func (r *GormClaimRepo) Get(ctx context.Context, id string) (*domain.Claim, error) {
	var model ClaimModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: claim %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, domain.NewStoreError("get claim", err)
	}

	activity, err := r.loadActivity(ctx, r.db, id)
	if err != nil {
		return nil, domain.NewStoreError("get claim activity", err)
	}

	claim := claimModelToDomain(&model)
	claim.Activity = activity
	return claim, nil
}

func (r *GormClaimRepo) Save(ctx context.Context, c *domain.Claim) error {
	if c == nil {
		return fmt.Errorf("%w: claim is required", domain.ErrValidation)
	}

	expected := c.Version
	model := claimModelFromDomain(c)
	model.Version = expected + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expected == 0 {
			if err := tx.Create(model).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: claim %s already exists", domain.ErrConcurrentModification, c.ID)
				}
				return err
			}
		} else {
			result := tx.Model(&ClaimModel{}).
				Where("id = ? AND version = ?", c.ID, expected).
				Updates(claimUpdateColumns(model))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return staleOrMissing(tx, c.ID, expected)
			}
		}

		return appendActivity(tx, c.Activity)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.NewStoreError("save claim", err)
	}

	c.Version = model.Version
	return nil
}

func (r *GormClaimRepo) Query(ctx context.Context, filter ClaimFilter) ([]domain.Claim, int64, error) {
	query := r.db.WithContext(ctx).Model(&ClaimModel{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.ServiceCenterID != "" {
		query = query.Where("service_center_id = ?", filter.ServiceCenterID)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewStoreError("count claims", err)
	}

	limit := filter.Limit
	if limit < 1 {
		limit = defaultQueryLimit
	}
	limit = min(limit, maxQueryLimit)

	var models []ClaimModel
	err := query.
		Order("submitted_at DESC").
		Order("id ASC").
		Offset(max(filter.Offset, 0)).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, domain.NewStoreError("query claims", err)
	}

	claims := make([]domain.Claim, 0, len(models))
	for i := range models {
		claims = append(claims, *claimModelToDomain(&models[i]))
	}

	return claims, total, nil
}

func (r *GormClaimRepo) ListActivity(ctx context.Context, claimID string) ([]domain.ActivityEntry, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ClaimModel{}).Where("id = ?", claimID).Count(&count).Error; err != nil {
		return nil, domain.NewStoreError("list activity", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: claim %s", domain.ErrNotFound, claimID)
	}

	entries, err := r.loadActivity(ctx, r.db, claimID)
	if err != nil {
		return nil, domain.NewStoreError("list activity", err)
	}
	return entries, nil
}

func (r *GormClaimRepo) loadActivity(ctx context.Context, db *gorm.DB, claimID string) ([]domain.ActivityEntry, error) {
	var models []ClaimActivityModel
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("position ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.ActivityEntry, 0, len(models))
	for i := range models {
		entries = append(entries, activityModelToDomain(&models[i]))
	}
	return entries, nil
}

// appendActivity inserts entries that are not stored yet. Existing rows are
// never rewritten.
func appendActivity(tx *gorm.DB, entries []domain.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	models := make([]ClaimActivityModel, 0, len(entries))
	for i, e := range entries {
		models = append(models, activityModelFromDomain(e, i))
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&models).Error
}

func staleOrMissing(tx *gorm.DB, id string, expected int64) error {
	var count int64
	if err := tx.Model(&ClaimModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: claim %s", domain.ErrNotFound, id)
	}
	return fmt.Errorf("%w: claim %s changed since version %d", domain.ErrConcurrentModification, id, expected)
}

func claimUpdateColumns(m *ClaimModel) map[string]any {
	return map[string]any{
		"repair_cost":           m.RepairCost,
		"commission":            m.Commission,
		"status":                m.Status,
		"payment_status":        m.PaymentStatus,
		"rejection_reason":      m.RejectionReason,
		"transaction_ref":       m.TransactionRef,
		"status_changed_at":     m.StatusChangedAt,
		"approved_at":           m.ApprovedAt,
		"repair_started_at":     m.RepairStartedAt,
		"completed_at":          m.CompletedAt,
		"payment_authorized_at": m.PaymentAuthorizedAt,
		"payment_executed_at":   m.PaymentExecutedAt,
		"approved_by":           m.ApprovedBy,
		"rejected_by":           m.RejectedBy,
		"payment_authorized_by": m.PaymentAuthorizedBy,
		"payment_executed_by":   m.PaymentExecutedBy,
		"version":               m.Version,
	}
}
