package projects

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/masters"
	"github.com/itopex/opex-backend/internal/utils"
)

type Handler struct {
	db     *gorm.DB
	ledger *ledger.Service
	depts  DeptResolver
	log    *zap.Logger
}

func NewHandler(gdb *gorm.DB, svc *ledger.Service, depts DeptResolver, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: gdb, ledger: svc, depts: depts, log: log}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperr.Write(w, r, h.log, err)
}

// ledgerIn returns the ledger service bound to tx so plan writes commit or
// roll back with the project change.
func (h *Handler) ledgerIn(tx *gorm.DB) *ledger.Service {
	return h.ledger.Bind(ledger.NewGormStore(tx))
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	query := h.db.WithContext(r.Context()).Model(&Project{})
	if v := q.Get("fiscal_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, r, apperr.Validation("invalid fiscal_year %q", v))
			return
		}
		query = query.Where("fiscal_year = ?", year)
	}
	if v := q.Get("dept_code"); v != "" {
		query = query.Where("dept_code = ?", strings.ToUpper(v))
	}

	var projects []Project
	if err := query.Order("created_at DESC, proj_id").Offset(skip).Limit(limit).Find(&projects).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch projects", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, projects)
}

func findProject(tx *gorm.DB, id string) (*Project, error) {
	var p Project
	err := tx.First(&p, "proj_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("project %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load project", err)
	}
	return &p, nil
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "proj_id")

	p, err := findProject(h.db.WithContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.ledger.ProjectRecords(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, Detail{Project: *p, Monthly: records})
}

type projectInput struct {
	ProjName         string                     `json:"proj_name"`
	DeptCode         string                     `json:"dept_code"`
	FiscalYear       int                        `json:"fiscal_year"`
	VendorID         *string                    `json:"vendor_id"`
	VendorNameText   string                     `json:"vendor_name_text"`
	SvcID            *string                    `json:"svc_id"`
	GLAccount        string                     `json:"gl_account"`
	CostCenterCode   string                     `json:"cost_center_code"`
	CostCenterName   string                     `json:"cost_center_name"`
	BudgetNature     string                     `json:"budget_nature"`
	BudgetNatureType string                     `json:"budget_nature_type"`
	ContractNature   string                     `json:"contract_nature"`
	ReportClass      string                     `json:"report_class"`
	PrevProjID       string                     `json:"prev_proj_id"`
	IsPrepay         bool                       `json:"is_prepay"`
	PrepayID         string                     `json:"prepay_id"`
	SharedRatio      float64                    `json:"shared_ratio"`
	Memo             string                     `json:"memo"`
	MonthlyAmounts   []decimal.Decimal          `json:"monthly_amounts"`
	MonthlyPlans     map[string]decimal.Decimal `json:"monthly_plans"`
}

// plans merges monthly_amounts (January first) and monthly_plans (by
// YYYYMM) into one plan map.
func (in projectInput) plans() (map[fiscal.Month]decimal.Decimal, error) {
	if len(in.MonthlyAmounts) > 12 {
		return nil, apperr.Validation("monthly_amounts has %d entries, expected at most 12", len(in.MonthlyAmounts))
	}
	out := make(map[fiscal.Month]decimal.Decimal, 12)
	for i, amount := range in.MonthlyAmounts {
		out[fiscal.Of(in.FiscalYear, i+1)] = amount
	}
	for raw, amount := range in.MonthlyPlans {
		m, err := fiscal.Parse(raw)
		if err != nil {
			return nil, err
		}
		out[m] = amount
	}
	for m, amount := range out {
		if amount.IsNegative() {
			return nil, apperr.ErrInvalidAmount.WithMessage("plan amount for %s must not be negative", m)
		}
	}
	return out, nil
}

func (in projectInput) project() (Project, error) {
	p := Project{
		ProjName:         strings.TrimSpace(in.ProjName),
		DeptCode:         strings.ToUpper(strings.TrimSpace(in.DeptCode)),
		FiscalYear:       in.FiscalYear,
		VendorID:         blankToNil(in.VendorID),
		VendorNameText:   strings.TrimSpace(in.VendorNameText),
		SvcID:            blankToNil(in.SvcID),
		GLAccount:        strings.TrimSpace(in.GLAccount),
		CostCenterCode:   strings.TrimSpace(in.CostCenterCode),
		CostCenterName:   strings.TrimSpace(in.CostCenterName),
		BudgetNature:     in.BudgetNature,
		BudgetNatureType: in.BudgetNatureType,
		ContractNature:   in.ContractNature,
		ReportClassType:  in.ReportClass,
		PrevProjID:       strings.TrimSpace(in.PrevProjID),
		IsPrepay:         in.IsPrepay,
		PrepayID:         in.PrepayID,
		SharedRatio:      in.SharedRatio,
		Memo:             in.Memo,
		ProjStatus:       StatusPending,
	}
	if p.ProjName == "" {
		return Project{}, apperr.Validation("proj_name is required")
	}
	if !validDeptCode(p.DeptCode) {
		return Project{}, apperr.Validation("dept_code must be 1-5 upper-case letters, got %q", in.DeptCode)
	}
	if p.FiscalYear < 2000 || p.FiscalYear > 2999 {
		return Project{}, apperr.Validation("invalid fiscal_year %d", in.FiscalYear)
	}
	if p.SharedRatio < 0 || p.SharedRatio > 100 {
		return Project{}, apperr.Validation("shared_ratio must be between 0 and 100")
	}
	return p, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// allocateID numbers the next project of dept. The advisory lock keeps
// concurrent creations in the same department from drawing the same id.
func allocateID(tx *gorm.DB, dept string) (string, error) {
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "project:"+dept).Error; err != nil {
		return "", apperr.Internal("failed to lock project numbering", err)
	}
	var ids []string
	if err := tx.Model(&Project{}).Where("proj_id LIKE ?", dept+"-%").Pluck("proj_id", &ids).Error; err != nil {
		return "", apperr.Internal("failed to read project ids", err)
	}
	return nextProjectID(dept, ids), nil
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in projectInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := in.project()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	plans, err := in.plans()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		id, err := allocateID(tx, p.DeptCode)
		if err != nil {
			return err
		}
		p.ProjID = id
		if err := tx.Create(&p).Error; err != nil {
			return apperr.Internal("failed to create project", err)
		}
		return h.ledgerIn(tx).SetPlanAmounts(r.Context(), p.ProjID, plans)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("project created", zap.String("proj_id", p.ProjID), zap.Int("fiscal_year", p.FiscalYear))
	utils.WriteJSON(w, http.StatusCreated, p)
}

type projectPatch struct {
	ProjName         *string  `json:"proj_name"`
	DeptCode         *string  `json:"dept_code"`
	FiscalYear       *int     `json:"fiscal_year"`
	PrevProjID       *string  `json:"prev_proj_id"`
	VendorID         *string  `json:"vendor_id"`
	VendorNameText   *string  `json:"vendor_name_text"`
	SvcID            *string  `json:"svc_id"`
	GLAccount        *string  `json:"gl_account"`
	CostCenterCode   *string  `json:"cost_center_code"`
	CostCenterName   *string  `json:"cost_center_name"`
	BudgetL2         *string  `json:"budget_l2"`
	BudgetS2         *string  `json:"budget_s2"`
	BudgetNature     *string  `json:"budget_nature"`
	BudgetNatureType *string  `json:"budget_nature_type"`
	BudgetITType     *string  `json:"budget_it_type"`
	ContractNature   *string  `json:"contract_nature"`
	ContractPeriod   *string  `json:"contract_period"`
	ReportClassType  *string  `json:"report_class_type"`
	ProjStatus       *string  `json:"proj_status"`
	IsITO            *bool    `json:"is_ito"`
	IsPrepay         *bool    `json:"is_prepay"`
	PrepayID         *string  `json:"prepay_id"`
	SharedRatio      *float64 `json:"shared_ratio"`
	Memo             *string  `json:"memo"`

	// Twelve entries starting with January; null leaves a month unchanged.
	MonthlyAmounts []*decimal.Decimal `json:"monthly_amounts"`
}

// updates converts the set fields into column updates.
func (p projectPatch) updates() (map[string]any, error) {
	u := map[string]any{}
	text := func(col string, v *string) {
		if v != nil {
			u[col] = strings.TrimSpace(*v)
		}
	}
	ref := func(col string, v *string) {
		if v != nil {
			u[col] = blankToNil(v)
		}
	}

	if p.ProjName != nil {
		name := strings.TrimSpace(*p.ProjName)
		if name == "" {
			return nil, apperr.Validation("proj_name must not be blank")
		}
		u["proj_name"] = name
	}
	if p.DeptCode != nil {
		dept := strings.ToUpper(strings.TrimSpace(*p.DeptCode))
		if !validDeptCode(dept) {
			return nil, apperr.Validation("invalid dept_code %q", *p.DeptCode)
		}
		u["dept_code"] = dept
	}
	if p.FiscalYear != nil {
		if *p.FiscalYear < 2000 || *p.FiscalYear > 2999 {
			return nil, apperr.Validation("invalid fiscal_year %d", *p.FiscalYear)
		}
		u["fiscal_year"] = *p.FiscalYear
	}
	if p.SharedRatio != nil {
		if *p.SharedRatio < 0 || *p.SharedRatio > 100 {
			return nil, apperr.Validation("shared_ratio must be between 0 and 100")
		}
		u["shared_ratio"] = *p.SharedRatio
	}
	if p.ProjStatus != nil {
		u["proj_status"] = strings.ToUpper(strings.TrimSpace(*p.ProjStatus))
	}
	if p.IsITO != nil {
		u["is_ito"] = *p.IsITO
	}
	if p.IsPrepay != nil {
		u["is_prepay"] = *p.IsPrepay
	}

	ref("vendor_id", p.VendorID)
	ref("svc_id", p.SvcID)
	text("prev_proj_id", p.PrevProjID)
	text("vendor_name_text", p.VendorNameText)
	text("gl_account", p.GLAccount)
	text("cost_center_code", p.CostCenterCode)
	text("cost_center_name", p.CostCenterName)
	text("budget_l2", p.BudgetL2)
	text("budget_s2", p.BudgetS2)
	text("budget_nature", p.BudgetNature)
	text("budget_nature_type", p.BudgetNatureType)
	text("budget_it_type", p.BudgetITType)
	text("contract_nature", p.ContractNature)
	text("contract_period", p.ContractPeriod)
	text("report_class_type", p.ReportClassType)
	text("prepay_id", p.PrepayID)
	if p.Memo != nil {
		u["memo"] = *p.Memo
	}
	return u, nil
}

// plans returns the changed plan months for year.
func (p projectPatch) plans(year int) (map[fiscal.Month]decimal.Decimal, error) {
	if len(p.MonthlyAmounts) > 12 {
		return nil, apperr.Validation("monthly_amounts has %d entries, expected at most 12", len(p.MonthlyAmounts))
	}
	out := make(map[fiscal.Month]decimal.Decimal)
	for i, amount := range p.MonthlyAmounts {
		if amount == nil {
			continue
		}
		if amount.IsNegative() {
			return nil, apperr.ErrInvalidAmount.WithMessage("plan amount for month %d must not be negative", i+1)
		}
		out[fiscal.Of(year, i+1)] = *amount
	}
	return out, nil
}

// UpdateProject applies a partial update. Plan changes in closed months are
// rejected and roll back the whole request.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "proj_id")

	var patch projectPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	updates, err := patch.updates()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var result *Project
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		p, err := findProject(tx, id)
		if err != nil {
			return err
		}
		year := p.FiscalYear
		if patch.FiscalYear != nil {
			year = *patch.FiscalYear
		}

		// Plans first: the ledger locks months before project rows.
		plans, err := patch.plans(year)
		if err != nil {
			return err
		}
		if len(plans) > 0 {
			if err := h.ledgerIn(tx).SetPlanAmounts(r.Context(), id, plans); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(p).Updates(updates).Error; err != nil {
				return apperr.Internal("failed to update project", err)
			}
		}
		result, err = findProject(tx, id)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// DeleteProject removes a project and its plan rows. Projects that carry
// execution data, transfers or mapped SAP postings are kept.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "proj_id")

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if _, err := findProject(tx, id); err != nil {
			return err
		}

		svc := h.ledgerIn(tx)
		deps, err := svc.ProjectDependents(r.Context(), id)
		if err != nil {
			return err
		}
		if deps.Any() {
			return apperr.ErrReferenced.WithMessage(
				"project %s has %d transfers and %d months with execution data", id, deps.Transfers, deps.ActiveRecords)
		}

		var postings int64
		if err := tx.Table("opex.sap_postings").Where("mapped_proj_id = ?", id).Count(&postings).Error; err != nil {
			return apperr.Internal("failed to check SAP postings", err)
		}
		if postings > 0 {
			return apperr.ErrReferenced.WithMessage("project %s has %d mapped SAP postings", id, postings)
		}

		if err := svc.DeleteProjectRecords(r.Context(), id); err != nil {
			return err
		}
		if err := tx.Delete(&Project{}, "proj_id = ?", id).Error; err != nil {
			return apperr.Internal("failed to delete project", err)
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("project deleted", zap.String("proj_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// vendorIndex maps lower-cased vendor names and aliases to vendor ids.
type vendorIndex map[string]string

func loadVendorIndex(ctx context.Context, tx *gorm.DB) (vendorIndex, error) {
	var vendors []masters.Vendor
	if err := tx.WithContext(ctx).Where("is_active").Find(&vendors).Error; err != nil {
		return nil, apperr.Internal("failed to load vendors", err)
	}
	idx := make(vendorIndex, len(vendors))
	for _, v := range vendors {
		idx[strings.ToLower(v.VendorName)] = v.VendorID
		for _, a := range v.Aliases {
			if key := strings.ToLower(strings.TrimSpace(a)); key != "" {
				if _, taken := idx[key]; !taken {
					idx[key] = v.VendorID
				}
			}
		}
	}
	return idx, nil
}

func (idx vendorIndex) lookup(name string) *string {
	id, ok := idx[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return &id
}
