package masters

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/db"
)

func Init(gdb *gorm.DB) error {
	if err := db.EnsureSchema(gdb, db.Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", db.Schema, err)
	}

	if err := gdb.AutoMigrate(
		&Vendor{},
		&ITService{},
		&GLAccount{},
		&CostCenter{},
		&BudgetCode{},
	); err != nil {
		return fmt.Errorf("auto-migrate master tables: %w", err)
	}

	if err := gdb.Exec(`
		CREATE INDEX IF NOT EXISTS idx_budget_code_tree
		ON opex.budget_codes (code_type, parent_code_id, sort_order);
	`).Error; err != nil {
		return fmt.Errorf("create idx_budget_code_tree: %w", err)
	}
	return nil
}
