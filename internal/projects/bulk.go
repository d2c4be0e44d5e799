package projects

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/importer"
)

// Columns of the project master template.
const (
	colIndex           = "Index"
	colYear            = "연도"
	colName            = "사업명"
	colCCName          = "CC명칭"
	colCCCode          = "CC코드"
	colPrevIndex       = "전년도 Index"
	colContinuity      = "사업 연속성"
	colPrevStatus      = "전년도 사업상태"
	colGLAccount       = "계정"
	colGLAccountName   = "계정명칭"
	colVendor          = "협력업체명"
	colVendorLocation  = "협력"
	colResponsibleUser = "담당자"
	colResponsibleDept = "담당부서"
	colContractNature  = "계약 성격"
	colAllocation      = "사업장 배분"
	colBudgetL2        = "예산 분류(대2)"
	colBudgetS2        = "예산 분류(소2)"
	colBudgetNature    = "예산 성격"
	colReportClass     = "예산보고 분류"
	colBudgetIT        = "예산 분류(IT)"
	colITO             = "통합ITO 대상"
	colPrepay          = "선급 대상"
	colPrepayID        = "선급ID"
	colSharedRatio     = "Shared비율"
	colMemo            = "사업 메모"

	// The contract period header carries the year, e.g. "26년 계약기간(필수확인)".
	contractPeriodHint = "계약기간"
)

// Columns of the simple project template.
const (
	colDeptCode      = "부서 코드"
	monthPlanPattern = "%d월 계획"
)

// plannedProject is a parsed upload row: the master record and its plan.
type plannedProject struct {
	Project Project
	Plans   map[fiscal.Month]decimal.Decimal
}

// rowError marks a row that is skipped as invalid rather than failing the
// whole upload.
type rowError struct{ reason string }

func (e rowError) Error() string { return e.reason }

func reject(format string, args ...any) error {
	return rowError{reason: fmt.Sprintf(format, args...)}
}

// planColumns returns the YYYYMM headers of a master sheet.
func planColumns(s *importer.Sheet) []string {
	return s.Columns(func(h string) bool {
		if len(h) != 6 || !strings.HasPrefix(h, "20") {
			return false
		}
		_, err := fiscal.Parse(h)
		return err == nil
	})
}

func parseYear(v string) (int, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "년")
	if v == "" {
		return 0, nil
	}
	d, err := importer.ParseAmount(v)
	if err != nil {
		return 0, err
	}
	year := int(d.IntPart())
	if year < 2000 || year > 2999 {
		return 0, fmt.Errorf("year %s out of range", v)
	}
	return year, nil
}

// yearOfSheet reads the fiscal year from the first row that has one.
func yearOfSheet(s *importer.Sheet) (int, error) {
	for _, row := range s.Rows {
		if v := row.Get(colYear); v != "" {
			return parseYear(v)
		}
	}
	return 0, nil
}

type masterParser struct {
	depts       DeptResolver
	year        int
	contractCol string
	planCols    []string
}

func newMasterParser(s *importer.Sheet, depts DeptResolver, year int) masterParser {
	p := masterParser{depts: depts, year: year, planCols: planColumns(s)}
	if cols := s.Columns(func(h string) bool { return strings.Contains(h, contractPeriodHint) }); len(cols) > 0 {
		p.contractCol = cols[0]
	}
	return p
}

// parse turns one master row into a project. Rows missing the index, name,
// year or a derivable department fail with a rowError.
func (p masterParser) parse(row importer.Row) (plannedProject, error) {
	id := strings.ToUpper(row.Get(colIndex))
	name := row.Get(colName)
	if id == "" || name == "" {
		return plannedProject{}, reject("Index and 사업명 are required")
	}
	if len(id) > 20 {
		return plannedProject{}, reject("Index %s is longer than 20 characters", id)
	}

	year, err := parseYear(row.Get(colYear))
	if err != nil {
		return plannedProject{}, reject("invalid 연도: %v", err)
	}
	switch {
	case year == 0:
		year = p.year
	case p.year != 0 && year != p.year:
		return plannedProject{}, reject("연도 %d does not match upload year %d", year, p.year)
	}
	if year == 0 {
		return plannedProject{}, reject("연도 is required")
	}

	ccName := row.Get(colCCName)
	dept := p.depts.Resolve(ccName)
	if dept == "" {
		return plannedProject{}, reject("no department rule matches cost center %q", ccName)
	}

	shared := 0.0
	if v := strings.TrimSuffix(row.Get(colSharedRatio), "%"); v != "" {
		if shared, err = strconv.ParseFloat(v, 64); err != nil {
			return plannedProject{}, reject("invalid Shared비율 %q", v)
		}
	}

	proj := Project{
		ProjID:             id,
		ProjName:           name,
		FiscalYear:         year,
		DeptCode:           dept,
		PrevProjID:         row.Get(colPrevIndex),
		ContinuityStatus:   row.Get(colContinuity),
		StatusPrevYear:     row.Get(colPrevStatus),
		GLAccount:          row.Get(colGLAccount),
		GLAccountName:      row.Get(colGLAccountName),
		CostCenterCode:     row.Get(colCCCode),
		CostCenterName:     ccName,
		VendorNameText:     row.Get(colVendor),
		VendorLocation:     row.Get(colVendorLocation),
		ResponsibleUser:    row.Get(colResponsibleUser),
		ResponsibleDept:    row.Get(colResponsibleDept),
		ContractNature:     row.Get(colContractNature),
		BusinessAllocation: row.Get(colAllocation),
		BudgetL2:           row.Get(colBudgetL2),
		BudgetS2:           row.Get(colBudgetS2),
		BudgetNatureType:   row.Get(colBudgetNature),
		ReportClassType:    row.Get(colReportClass),
		BudgetITType:       row.Get(colBudgetIT),
		ProjStatus:         StatusPending,
		IsITO:              isYes(row.Get(colITO)),
		IsPrepay:           isYes(row.Get(colPrepay)),
		PrepayID:           row.Get(colPrepayID),
		SharedRatio:        shared,
		Memo:               row.Get(colMemo),
	}
	if p.contractCol != "" {
		proj.ContractPeriod = row.Get(p.contractCol)
	}

	plans := make(map[fiscal.Month]decimal.Decimal, len(p.planCols))
	for _, col := range p.planCols {
		m := fiscal.MustParse(col)
		if m.Year() != year {
			continue
		}
		amount, err := row.Amount(col)
		if err != nil {
			return plannedProject{}, reject("%s: %v", col, err)
		}
		if amount.IsNegative() {
			return plannedProject{}, reject("%s: negative plan amount", col)
		}
		plans[m] = amount
	}
	return plannedProject{Project: proj, Plans: plans}, nil
}

// parseSimpleRow reads the simple template: department, name, year and
// twelve "N월 계획" columns.
func parseSimpleRow(row importer.Row) (plannedProject, error) {
	dept := strings.ToUpper(row.Get(colDeptCode))
	name := row.Get(colName)
	if dept == "" || name == "" {
		return plannedProject{}, reject("부서 코드 and 사업명 are required")
	}
	if !validDeptCode(dept) {
		return plannedProject{}, reject("invalid 부서 코드 %q", dept)
	}
	year, err := parseYear(row.Get(colYear))
	if err != nil || year == 0 {
		return plannedProject{}, reject("invalid 연도 %q", row.Get(colYear))
	}

	plans := make(map[fiscal.Month]decimal.Decimal, 12)
	for n := 1; n <= 12; n++ {
		col := fmt.Sprintf(monthPlanPattern, n)
		amount, err := row.Amount(col)
		if err != nil {
			return plannedProject{}, reject("%s: %v", col, err)
		}
		if amount.IsNegative() {
			return plannedProject{}, reject("%s: negative plan amount", col)
		}
		plans[fiscal.Of(year, n)] = amount
	}

	return plannedProject{
		Project: Project{ProjName: name, DeptCode: dept, FiscalYear: year, ProjStatus: StatusPending},
		Plans:   plans,
	}, nil
}

func isYes(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "Y", "YES", "O", "TRUE", "1", "대상":
		return true
	}
	return false
}
