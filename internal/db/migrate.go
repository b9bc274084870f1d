package db

import (
	"fmt"

	"github.com/daryatsv/chapel/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model chapel persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Marriage{},
		&models.Proposal{},
		&models.MessageCount{},
	}
}

// AutoMigrate creates or updates all chapel tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops all chapel tables and re-creates them empty.
func Reset(gdb *gorm.DB) error {
	for _, m := range AllModels() {
		if err := gdb.Migrator().DropTable(m); err != nil {
			return fmt.Errorf("db: drop table: %w", err)
		}
	}
	return AutoMigrate(gdb)
}
