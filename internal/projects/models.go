package projects

import (
	"time"

	"github.com/itopex/opex-backend/internal/ledger"
)

const StatusPending = "PENDING"

// Project is one budgeted IT OPEX project of a fiscal year.
type Project struct {
	ProjID     string `gorm:"type:varchar(20);primaryKey" json:"proj_id"`
	ProjName   string `gorm:"type:varchar(200);not null" json:"proj_name"`
	FiscalYear int    `gorm:"not null;index" json:"fiscal_year"`
	DeptCode   string `gorm:"type:varchar(10);not null;index" json:"dept_code"`

	PrevProjID       string `gorm:"type:varchar(20)" json:"prev_proj_id,omitempty"`
	ContinuityStatus string `gorm:"type:varchar(20)" json:"continuity_status,omitempty"`
	StatusPrevYear   string `gorm:"type:varchar(50)" json:"status_prev_year,omitempty"`

	GLAccount      string `gorm:"column:gl_account;type:varchar(20)" json:"gl_account,omitempty"`
	GLAccountName  string `gorm:"column:gl_account_name;type:varchar(100)" json:"gl_account_name,omitempty"`
	CostCenterCode string `gorm:"type:varchar(20)" json:"cost_center_code,omitempty"`
	CostCenterName string `gorm:"type:varchar(100)" json:"cost_center_name,omitempty"`

	VendorID           *string `gorm:"type:varchar(20);index" json:"vendor_id"`
	VendorNameText     string  `gorm:"type:varchar(100)" json:"vendor_name_text,omitempty"`
	ContractPeriod     string  `gorm:"type:varchar(50)" json:"contract_period,omitempty"`
	VendorLocation     string  `gorm:"type:varchar(20)" json:"vendor_location,omitempty"`
	ResponsibleUser    string  `gorm:"type:varchar(50)" json:"responsible_user,omitempty"`
	ResponsibleDept    string  `gorm:"type:varchar(50)" json:"responsible_dept,omitempty"`
	ContractNature     string  `gorm:"type:varchar(50)" json:"contract_nature,omitempty"`
	BusinessAllocation string  `gorm:"type:varchar(50)" json:"business_allocation,omitempty"`

	BudgetL2         string  `gorm:"column:budget_l2;type:varchar(100)" json:"budget_l2,omitempty"`
	BudgetS2         string  `gorm:"column:budget_s2;type:varchar(100)" json:"budget_s2,omitempty"`
	BudgetNatureType string  `gorm:"type:varchar(50)" json:"budget_nature_type,omitempty"`
	BudgetNature     string  `gorm:"type:varchar(50)" json:"budget_nature,omitempty"`
	SvcID            *string `gorm:"type:varchar(20);index" json:"svc_id"`
	ReportClassType  string  `gorm:"type:varchar(50)" json:"report_class_type,omitempty"`
	BudgetITType     string  `gorm:"column:budget_it_type;type:varchar(50)" json:"budget_it_type,omitempty"`

	ProjStatus  string  `gorm:"type:varchar(20);not null;default:'PENDING'" json:"proj_status"`
	IsITO       bool    `gorm:"column:is_ito;not null;default:false" json:"is_ito"`
	IsPrepay    bool    `gorm:"not null;default:false" json:"is_prepay"`
	PrepayID    string  `gorm:"type:varchar(50)" json:"prepay_id,omitempty"`
	SharedRatio float64 `gorm:"not null;default:0" json:"shared_ratio"`
	Memo        string  `gorm:"type:text" json:"memo,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "opex.projects" }

// Detail is a project together with its monthly execution records.
type Detail struct {
	Project
	Monthly []ledger.ExecutionRecord `json:"monthly"`
}
