package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/cognivue/cognivue-backend/internal/domain"
)

func (s *Service) AutoMigrateAll() error {
	if err := AutoMigrate(s.db); err != nil {
		return err
	}
	s.log.Info("Schema migrated", "driver", s.driver)
	return nil
}

// AutoMigrate creates or updates every table. Shared with repo tests.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
