package database

import (
	"gorm.io/gorm"

	"github.com/gymfuel/gymfuel-sync/internal/models"
)

// RunMigrations brings the mirror schema up to date. SQLite is the only
// supported engine for the mirror, so GORM auto-migration is sufficient.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Product{},
		&models.Consumption{},
		&models.NutritionGoals{},
		&models.SyncQueueItem{},
		&deviceIdentity{},
	)
}
