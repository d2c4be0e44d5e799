// Package sap reconciles SAP G/L postings with projects. Uploaded postings
// are mapped to projects, automatically by the project id in the posting
// text or manually, and the mapped totals become the ledger's actuals.
package sap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/fiscal"
)

const (
	StatusUnmapped = "UNMAPPED"
	StatusMapped   = "MAPPED"
)

// UnknownMonth marks postings whose posting date could not be read.
const UnknownMonth fiscal.Month = "999912"

// Posting is one line item of an SAP G/L export.
type Posting struct {
	RawID             uint            `gorm:"primaryKey" json:"raw_id"`
	FiscalYear        string          `gorm:"type:varchar(4);not null;uniqueIndex:uq_sap_line" json:"fiscal_year"`
	SlipNo            string          `gorm:"type:varchar(50);not null;uniqueIndex:uq_sap_line" json:"slip_no"`
	LineItem          int             `gorm:"not null;uniqueIndex:uq_sap_line" json:"line_item"`
	PostingDate       string          `gorm:"type:varchar(20)" json:"posting_date"`
	YYYYMM            fiscal.Month    `gorm:"column:yyyymm;type:varchar(6);not null;index" json:"yyyymm"`
	Amount            decimal.Decimal `gorm:"type:numeric(15,0);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(10);default:'KRW'" json:"currency"`
	GLAccount         string          `gorm:"type:varchar(20)" json:"gl_account"`
	GLAccountName     string          `gorm:"type:varchar(100)" json:"gl_account_name"`
	Text              string          `gorm:"type:varchar(200)" json:"text"`
	OffsetAccountName string          `gorm:"type:varchar(100)" json:"offset_account_name"`
	HeaderRef         string          `gorm:"type:varchar(100)" json:"header_ref"`
	CostCenter        string          `gorm:"type:varchar(20)" json:"cost_center"`
	MapStatus         string          `gorm:"type:varchar(20);not null;default:'UNMAPPED';index" json:"map_status"`
	MappedProjID      *string         `gorm:"type:varchar(20);index" json:"mapped_proj_id"`
	MappedAt          *time.Time      `json:"mapped_at"`
	MappedBy          string          `gorm:"type:varchar(50)" json:"mapped_by"`
	UploadedAt        time.Time       `gorm:"autoCreateTime" json:"uploaded_at"`
}

func (Posting) TableName() string { return "opex.sap_postings" }

// MapResult reports one mapping run.
type MapResult struct {
	Scanned int    `json:"scanned"`
	Mapped  int    `json:"mapped"`
	Message string `json:"message"`
}
