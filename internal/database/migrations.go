package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/rmitchellscott/couchpilot/internal/logging"
)

// RunMigrations runs gormigrate migrations followed by auto-migration of all
// models. The initial migration owns the base schema; auto-migration keeps
// columns in sync for development databases.
func RunMigrations() error {
	m := gormigrate.New(DB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202508010000_initial_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&User{}, &Device{}, &Command{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&Command{}, &Device{}, &User{})
			},
		},
		{
			ID: "202508120000_device_api_key_index",
			Migrate: func(tx *gorm.DB) error {
				if tx.Migrator().HasIndex(&Device{}, "idx_devices_api_key") {
					return nil
				}
				return tx.Migrator().CreateIndex(&Device{}, "APIKey")
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("gormigrate: %w", err)
	}

	for _, model := range GetAllModels() {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to auto-migrate %T: %w", model, err)
		}
	}

	logging.InfoWithComponent(logging.ComponentDatabase, "Migrations completed")
	return nil
}
