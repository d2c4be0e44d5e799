package projects

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/db"
)

func Init(gdb *gorm.DB) error {
	if err := db.EnsureSchema(gdb, db.Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", db.Schema, err)
	}
	if err := gdb.AutoMigrate(&Project{}); err != nil {
		return fmt.Errorf("auto-migrate projects: %w", err)
	}
	return nil
}
