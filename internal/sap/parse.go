package sap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/importer"
)

// Columns of the SAP G/L line item export.
const (
	colSlipNo        = "전표 번호"
	colPostingDate   = "전기일"
	colAmount        = "금액(현지 통화)"
	colLineItem      = "개별 항목"
	colFiscalYear    = "회계연도"
	colGLAccount     = "G/L 계정"
	colGLAccountName = "G/L 계정과목명"
	colText          = "텍스트"
	colCurrency      = "현지 통화"
	colOffsetAccount = "상계계정 명칭"
	colHeaderRef     = "참조 키(헤더) 1"
	colCostCenter    = "코스트 센터"
)

var requiredColumns = []string{colSlipNo, colPostingDate, colAmount}

// projectRef finds a project id such as A-001 or [A-001] in posting text.
var projectRef = regexp.MustCompile(`\[?([A-Z]-\d{3})\]?`)

// ExtractProjectID returns the first project id in text, or "".
func ExtractProjectID(text string) string {
	m := projectRef.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"20060102",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06",
	"1/2/2006",
}

// MonthOf derives the posting month from an export date cell. Dates that
// cannot be read fall into UnknownMonth.
func MonthOf(date string) fiscal.Month {
	date = strings.TrimSpace(date)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return fiscal.FromTime(t)
		}
	}
	digits := strings.NewReplacer("-", "", ".", "", "/", "").Replace(date)
	if len(digits) >= 6 {
		if m, err := fiscal.Parse(digits[:6]); err == nil {
			return m
		}
	}
	return UnknownMonth
}

// skipRow reports rows without a slip number or amount, which the export
// uses for subtotals.
func skipRow(row importer.Row) bool {
	return row.Get(colSlipNo) == "" || row.Get(colAmount) == ""
}

// postingFromRow maps one export row onto an unmapped posting.
func postingFromRow(row importer.Row) (Posting, error) {
	amount, err := row.Amount(colAmount)
	if err != nil {
		return Posting{}, err
	}
	lineItem, err := row.Int(colLineItem)
	if err != nil {
		return Posting{}, fmt.Errorf("invalid %s %q", colLineItem, row.Get(colLineItem))
	}

	p := Posting{
		SlipNo:            row.Get(colSlipNo),
		LineItem:          lineItem,
		PostingDate:       row.Get(colPostingDate),
		Amount:            amount,
		Currency:          row.Get(colCurrency),
		GLAccount:         row.Get(colGLAccount),
		GLAccountName:     row.Get(colGLAccountName),
		Text:              row.Get(colText),
		OffsetAccountName: row.Get(colOffsetAccount),
		HeaderRef:         row.Get(colHeaderRef),
		CostCenter:        row.Get(colCostCenter),
		MapStatus:         StatusUnmapped,
	}
	p.YYYYMM = MonthOf(p.PostingDate)
	if p.Currency == "" {
		p.Currency = "KRW"
	}

	p.FiscalYear = strings.TrimSuffix(row.Get(colFiscalYear), ".0")
	if p.FiscalYear == "" && p.YYYYMM != UnknownMonth {
		p.FiscalYear = strconv.Itoa(p.YYYYMM.Year())
	}
	if len(p.FiscalYear) != 4 {
		return Posting{}, fmt.Errorf("invalid %s %q", colFiscalYear, p.FiscalYear)
	}
	return p, nil
}
