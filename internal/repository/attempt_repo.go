package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepository stores the transition security log.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.TransitionAttempt) error
	ListByClaimID(ctx context.Context, claimID string) ([]domain.TransitionAttempt, error)
	ListDeniedByActor(ctx context.Context, actorID string, since time.Time) ([]domain.TransitionAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

// Create is idempotent on the attempt id so redelivered queue messages do
// not produce duplicate rows.
func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.TransitionAttempt) error {
	model := attemptModelFromDomain(a)
	if model == nil {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(model).Error
	if err != nil {
		return domain.NewStoreError("create attempt", err)
	}
	return nil
}

func (r *GormAttemptRepo) ListByClaimID(ctx context.Context, claimID string) ([]domain.TransitionAttempt, error) {
	var models []TransitionAttemptModel
	err := r.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("occurred_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.NewStoreError("list attempts", err)
	}

	return attemptsToDomain(models), nil
}

func (r *GormAttemptRepo) ListDeniedByActor(ctx context.Context, actorID string, since time.Time) ([]domain.TransitionAttempt, error) {
	var models []TransitionAttemptModel
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND outcome = ? AND occurred_at >= ?", actorID, domain.OutcomeDenied, since).
		Order("occurred_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.NewStoreError("list denied attempts", err)
	}

	return attemptsToDomain(models), nil
}

func attemptsToDomain(models []TransitionAttemptModel) []domain.TransitionAttempt {
	attempts := make([]domain.TransitionAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts
}
