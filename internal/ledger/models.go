package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/fiscal"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusClosed:
		return StatusClosed, nil
	}
	return "", apperr.Validation("invalid status %q, expected OPEN or CLOSED", s)
}

// PeriodStatus is the closing state of one fiscal month. A month without a
// stored row is OPEN. ClosedAt and ClosedBy record the last transition.
type PeriodStatus struct {
	YYYYMM   fiscal.Month `gorm:"column:yyyymm;type:varchar(6);primaryKey" json:"yyyymm"`
	Status   Status       `gorm:"type:varchar(10);not null;default:'OPEN'" json:"status"`
	ClosedAt *time.Time   `json:"closed_at"`
	ClosedBy *string      `gorm:"type:varchar(50)" json:"closed_by"`
}

func (PeriodStatus) TableName() string { return "opex.monthly_close" }

func (p PeriodStatus) Closed() bool { return p.Status == StatusClosed }

// ExecutionRecord holds plan, actual and forecast for one project and month.
type ExecutionRecord struct {
	ID                uint            `gorm:"primaryKey" json:"data_id"`
	ProjID            string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_monthly_proj_month" json:"proj_id"`
	YYYYMM            fiscal.Month    `gorm:"column:yyyymm;type:varchar(6);not null;uniqueIndex:idx_monthly_proj_month;index" json:"yyyymm"`
	PlanAmt           decimal.Decimal `gorm:"type:numeric(15,0);not null;default:0" json:"plan_amt"`
	ActualAmt         decimal.Decimal `gorm:"type:numeric(15,0);not null;default:0" json:"actual_amt"`
	EstAmt            decimal.Decimal `gorm:"type:numeric(15,0);not null;default:0" json:"est_amt"`
	IsActualFinalized bool            `gorm:"not null;default:false" json:"is_actual_finalized"`
	FinalizedAt       *time.Time      `json:"finalized_at,omitempty"`
	FinalizedBy       *string         `gorm:"type:varchar(50)" json:"finalized_by,omitempty"`
	Remark            string          `gorm:"type:varchar(500)" json:"remark,omitempty"`
}

func (ExecutionRecord) TableName() string { return "opex.monthly_data" }

// Active reports whether the record carries execution data that must not be
// discarded with its project.
func (r ExecutionRecord) Active() bool {
	return r.IsActualFinalized || !r.ActualAmt.IsZero() || !r.EstAmt.IsZero()
}

// wholeWon reports whether d fits the numeric(15,0) amount columns without
// rounding.
func wholeWon(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}

const TransferApplied = "APPLIED"

// Transfer is one append-only entry of the transfer ledger. Plan amounts are
// never rewritten; balances are derived from these entries.
type Transfer struct {
	TransferID     uint            `gorm:"primaryKey" json:"transfer_id"`
	FromProjID     string          `gorm:"type:varchar(20);not null;index" json:"from_proj_id"`
	ToProjID       string          `gorm:"type:varchar(20);not null;index" json:"to_proj_id"`
	TransferAmount decimal.Decimal `gorm:"type:numeric(15,0);not null" json:"transfer_amount"`
	TransferYYYYMM fiscal.Month    `gorm:"column:transfer_yyyymm;type:varchar(6);not null;index" json:"transfer_yyyymm"`
	Reason         string          `gorm:"type:varchar(500)" json:"reason"`
	Status         string          `gorm:"type:varchar(20);not null;default:'APPLIED'" json:"status"`
	TransferredAt  time.Time       `gorm:"not null" json:"transferred_at"`
	TransferredBy  string          `gorm:"type:varchar(50);not null" json:"transferred_by"`
}

func (Transfer) TableName() string { return "opex.budget_transfers" }

// TransferRequest is the input of ExecuteTransfer.
type TransferRequest struct {
	FromProjID string          `json:"from_proj_id"`
	ToProjID   string          `json:"to_proj_id"`
	Amount     decimal.Decimal `json:"transfer_amount"`
	Month      string          `json:"transfer_yyyymm"`
	Reason     string          `json:"reason"`
	Actor      string          `json:"transferred_by"`
}

type TransferFilter struct {
	Month  fiscal.Month
	ProjID string // matches either side
}

// ProjectRef is the ledger's read-only view of a project.
type ProjectRef struct {
	ProjID     string
	ProjName   string
	DeptCode   string
	FiscalYear int
	VendorName string
}

// MonthlyStatus is one row of the monthly execution view.
type MonthlyStatus struct {
	ProjID            string          `json:"proj_id"`
	ProjName          string          `json:"proj_name"`
	DeptCode          string          `json:"dept_code"`
	VendorName        string          `json:"vendor_name"`
	YYYYMM            fiscal.Month    `json:"yyyymm"`
	PlanAmt           decimal.Decimal `json:"plan_amt"`
	ActualAmt         decimal.Decimal `json:"actual_amt"`
	EstAmt            decimal.Decimal `json:"est_amt"`
	TransferIn        decimal.Decimal `json:"transfer_in"`
	TransferOut       decimal.Decimal `json:"transfer_out"`
	AdjustedPlanAmt   decimal.Decimal `json:"adjusted_plan_amt"`
	IsActualFinalized bool            `json:"is_actual_finalized"`
}

// Actual is one reconciled (project, month) total fed into RecordActuals.
type Actual struct {
	ProjID string
	Month  fiscal.Month
	Amount decimal.Decimal
}

type SyncResult struct {
	Updated          int `json:"updated"`
	Created          int `json:"created"`
	SkippedClosed    int `json:"skipped_closed"`
	SkippedFinalized int `json:"skipped_finalized"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("updated=%d created=%d skipped_closed=%d skipped_finalized=%d",
		r.Updated, r.Created, r.SkippedClosed, r.SkippedFinalized)
}
