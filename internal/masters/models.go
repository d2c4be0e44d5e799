package masters

import (
	"time"

	"github.com/lib/pq"
)

type Vendor struct {
	VendorID    string         `gorm:"type:varchar(20);primaryKey" json:"vendor_id"`
	BizRegNo    string         `gorm:"type:varchar(20);uniqueIndex;not null" json:"biz_reg_no"`
	VendorName  string         `gorm:"type:varchar(100);not null" json:"vendor_name"`
	SAPVendorCd string         `gorm:"column:sap_vendor_cd;type:varchar(20)" json:"sap_vendor_cd"`
	Aliases     pq.StringArray `gorm:"type:text[]" json:"aliases"`
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Vendor) TableName() string { return "opex.vendors" }

// ITService is an operated IT service projects can be attached to.
type ITService struct {
	SvcID         string         `gorm:"type:varchar(20);primaryKey" json:"svc_id"`
	SvcName       string         `gorm:"type:varchar(100);not null" json:"svc_name"`
	ContractType  string         `gorm:"type:varchar(20)" json:"contract_type"`
	IsResident    bool           `gorm:"not null;default:false" json:"is_resident"`
	OperatorNames pq.StringArray `gorm:"type:text[]" json:"operator_names"`
	IsActive      bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (ITService) TableName() string { return "opex.it_services" }

type GLAccount struct {
	GLAccountCode string    `gorm:"column:gl_account_code;type:varchar(20);primaryKey" json:"gl_account_code"`
	GLAccountName string    `gorm:"column:gl_account_name;type:varchar(100);not null" json:"gl_account_name"`
	AccountType   string    `gorm:"type:varchar(50)" json:"account_type"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (GLAccount) TableName() string { return "opex.gl_accounts" }

type CostCenter struct {
	CCCode    string    `gorm:"column:cc_code;type:varchar(20);primaryKey" json:"cc_code"`
	CCName    string    `gorm:"column:cc_name;type:varchar(100);not null" json:"cc_name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CostCenter) TableName() string { return "opex.cost_centers" }

// Budget code types. L2 codes hang under an L1 code; other types are flat.
const (
	CodeTypeL1     = "BUDGET_L1"
	CodeTypeL2     = "BUDGET_L2"
	CodeTypeITType = "IT_TYPE"
)

// BudgetCode classifies projects for reporting.
type BudgetCode struct {
	CodeID       string    `gorm:"type:varchar(20);primaryKey" json:"code_id"`
	CodeName     string    `gorm:"type:varchar(100);not null" json:"code_name"`
	ParentCodeID *string   `gorm:"type:varchar(20);index" json:"parent_code_id"`
	CodeType     string    `gorm:"type:varchar(50);not null;index" json:"code_type"`
	SortOrder    int       `gorm:"default:0" json:"sort_order"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`

	Children []BudgetCode `gorm:"-" json:"children,omitempty"`
}

func (BudgetCode) TableName() string { return "opex.budget_codes" }
