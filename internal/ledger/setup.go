package ledger

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/db"
)

// Init creates the ledger tables. Projects must be migrated first.
func Init(gdb *gorm.DB) error {
	if err := db.EnsureSchema(gdb, db.Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", db.Schema, err)
	}

	if err := gdb.AutoMigrate(&PeriodStatus{}, &ExecutionRecord{}, &Transfer{}); err != nil {
		return fmt.Errorf("auto-migrate ledger tables: %w", err)
	}

	// Transfers are positive and between distinct projects.
	if err := gdb.Exec(`
		DO $$ BEGIN
			ALTER TABLE opex.budget_transfers
				ADD CONSTRAINT chk_transfer_positive CHECK (transfer_amount > 0 AND from_proj_id <> to_proj_id);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("add transfer constraint: %w", err)
	}

	return nil
}
