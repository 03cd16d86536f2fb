package db

import (
	"portarium/app/db/models"

	"gorm.io/gorm"
)

// Migrate creates or upgrades every table the control plane owns inside one
// transaction.
func Migrate() error {
	return dbConn.Transaction(func(tx *gorm.DB) error {
		for _, modObj := range models.Models {
			if err := tx.AutoMigrate(modObj); err != nil {
				return err
			}
		}
		return nil
	})
}
