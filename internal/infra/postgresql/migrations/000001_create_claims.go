package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"gorm.io/gorm"
)

func createClaimsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_claims",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ClaimModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_claims_status_payment ON claims (status, payment_status)`,
				`CREATE INDEX IF NOT EXISTS idx_claims_service_center ON claims (service_center_id, submitted_at)`,
				`CREATE INDEX IF NOT EXISTS idx_claims_customer ON claims (customer_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ClaimModel{})
		},
	}
}
