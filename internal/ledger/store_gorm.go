package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/itopex/opex-backend/internal/fiscal"
)

// GormStore is the Postgres Store. Projects and vendors are read from the
// tables owned by their packages.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetPeriod inside Tx holds the month until commit. The advisory lock covers
// months that have no row yet, so the gate and every status change of one
// month are serialised.
func (s *GormStore) GetPeriod(ctx context.Context, month fiscal.Month) (*PeriodStatus, error) {
	var p PeriodStatus
	q := s.db.WithContext(ctx)
	if s.inTx {
		if err := q.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "period:"+string(month)).Error; err != nil {
			return nil, err
		}
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&p, "yyyymm = ?", month).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) SavePeriod(ctx context.Context, p *PeriodStatus) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "yyyymm"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "closed_at", "closed_by"}),
	}).Create(p).Error
}

func (s *GormStore) GetRecord(ctx context.Context, projID string, month fiscal.Month) (*ExecutionRecord, error) {
	var r ExecutionRecord
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&r, "proj_id = ? AND yyyymm = ?", projID, month).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) SaveRecord(ctx context.Context, r *ExecutionRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proj_id"}, {Name: "yyyymm"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_amt", "actual_amt", "est_amt",
			"is_actual_finalized", "finalized_at", "finalized_by", "remark",
		}),
	}).Create(r).Error
}

func (s *GormStore) ListRecords(ctx context.Context, month fiscal.Month) ([]ExecutionRecord, error) {
	var out []ExecutionRecord
	err := s.db.WithContext(ctx).
		Where("yyyymm = ?", month).
		Order("proj_id").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListProjectRecords(ctx context.Context, projID string) ([]ExecutionRecord, error) {
	var out []ExecutionRecord
	err := s.db.WithContext(ctx).
		Where("proj_id = ?", projID).
		Order("yyyymm").
		Find(&out).Error
	return out, err
}

func (s *GormStore) DeleteProjectRecords(ctx context.Context, projID string) error {
	return s.db.WithContext(ctx).Where("proj_id = ?", projID).Delete(&ExecutionRecord{}).Error
}

type projectRow struct {
	ProjID     string
	ProjName   string
	DeptCode   string
	FiscalYear int
	VendorName string
}

func (r projectRow) ref() ProjectRef {
	return ProjectRef(r)
}

const projectSelect = `p.proj_id, p.proj_name, p.dept_code, p.fiscal_year, COALESCE(v.vendor_name, NULLIF(p.vendor_name_text, ''), '') AS vendor_name`

func (s *GormStore) projectQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("opex.projects AS p").
		Select(projectSelect).
		Joins("LEFT JOIN opex.vendors v ON v.vendor_id = p.vendor_id")
}

func (s *GormStore) FindProject(ctx context.Context, projID string) (*ProjectRef, error) {
	var rows []projectRow
	q := s.projectQuery(ctx).Where("p.proj_id = ?", projID)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "p"}})
	}
	if err := q.Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ref := rows[0].ref()
	return &ref, nil
}

func (s *GormStore) ListProjects(ctx context.Context, fiscalYear int) ([]ProjectRef, error) {
	var rows []projectRow
	err := s.projectQuery(ctx).
		Where("p.fiscal_year = ?", fiscalYear).
		Order("p.proj_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ProjectRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ref())
	}
	return out, nil
}

func (s *GormStore) AppendTransfer(ctx context.Context, t *Transfer) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) ListTransfers(ctx context.Context, f TransferFilter) ([]Transfer, error) {
	q := s.db.WithContext(ctx).Model(&Transfer{})
	if f.Month != "" {
		q = q.Where("transfer_yyyymm = ?", f.Month)
	}
	if f.ProjID != "" {
		q = q.Where("from_proj_id = ? OR to_proj_id = ?", f.ProjID, f.ProjID)
	}
	var out []Transfer
	err := q.Order("transferred_at DESC, transfer_id DESC").Find(&out).Error
	return out, err
}

func (s *GormStore) TransferTotals(ctx context.Context, projID string, month fiscal.Month) (decimal.Decimal, decimal.Decimal, error) {
	var totals struct {
		InAmt  decimal.Decimal
		OutAmt decimal.Decimal
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN to_proj_id = ? THEN transfer_amount ELSE 0 END), 0) AS in_amt,
			COALESCE(SUM(CASE WHEN from_proj_id = ? THEN transfer_amount ELSE 0 END), 0) AS out_amt
		FROM opex.budget_transfers
		WHERE transfer_yyyymm = ? AND status = ? AND (from_proj_id = ? OR to_proj_id = ?)
	`, projID, projID, month, TransferApplied, projID, projID).Scan(&totals).Error
	return totals.InAmt, totals.OutAmt, err
}

func (s *GormStore) Tx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}
