package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"gorm.io/gorm"
)

func createClaimActivityTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_claim_activity",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ClaimActivityModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_activity_position ON claim_activity (claim_id, position)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ClaimActivityModel{})
		},
	}
}
