package auth

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/db"
)

func Init(gdb *gorm.DB) error {
	if err := db.EnsureSchema(gdb, "opex_auth"); err != nil {
		return fmt.Errorf("ensure schema opex_auth: %w", err)
	}

	if err := gdb.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}
	return nil
}
