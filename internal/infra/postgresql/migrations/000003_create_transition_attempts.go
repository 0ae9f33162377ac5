package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"gorm.io/gorm"
)

func createTransitionAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_transition_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TransitionAttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_attempts_claim_id ON transition_attempts (claim_id, occurred_at)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_denied_actor ON transition_attempts (actor_id, occurred_at) WHERE outcome = 'denied'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TransitionAttemptModel{})
		},
	}
}
