package projects

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/importer"
	"github.com/itopex/opex-backend/internal/utils"
)

// UploadMaster imports the full project master template for one fiscal year.
// The year comes from the "year" form field or the sheet's 연도 column.
// Existing projects are skipped unless ?overwrite=true.
func (h *Handler) UploadMaster(w http.ResponseWriter, r *http.Request) {
	sheet, err := importer.FromRequest(r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := sheet.Require(colIndex, colName, colCCName); err != nil {
		h.fail(w, r, err)
		return
	}

	year, err := uploadYear(r, sheet)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// A closed January locks the year's master data.
	if err := h.ledger.CheckMutable(r.Context(), fiscal.Of(year, 1)); err != nil {
		h.fail(w, r, err)
		return
	}
	overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))

	parser := newMasterParser(sheet, h.depts, year)
	res := importer.BulkResult{TotalCount: len(sheet.Rows)}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		vendors, err := loadVendorIndex(r.Context(), tx)
		if err != nil {
			return err
		}
		svc := h.ledgerIn(tx)
		seen := make(map[string]bool)

		for _, row := range sheet.Rows {
			pp, err := parser.parse(row)
			var rowErr rowError
			if errors.As(err, &rowErr) {
				res.Reject(row.Line, rowErr.reason)
				continue
			}
			if err != nil {
				return err
			}
			p := pp.Project
			if seen[p.ProjID] {
				res.Duplicate(p.ProjID)
				continue
			}
			seen[p.ProjID] = true
			p.VendorID = vendors.lookup(p.VendorNameText)

			var existing Project
			err = tx.Select("proj_id", "fiscal_year").First(&existing, "proj_id = ?", p.ProjID).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&p).Error; err != nil {
					return apperr.Internal("failed to create project "+p.ProjID, err)
				}
			case err != nil:
				return apperr.Internal("failed to check project", err)
			case !overwrite:
				res.Duplicate(p.ProjID)
				continue
			default:
				if existing.FiscalYear != p.FiscalYear {
					res.Reject(row.Line, "Index "+p.ProjID+" belongs to fiscal year "+strconv.Itoa(existing.FiscalYear))
					continue
				}
				err := tx.Model(&Project{}).Where("proj_id = ?", p.ProjID).
					Select("*").Omit("proj_id", "proj_status", "created_at").
					Updates(&p).Error
				if err != nil {
					return apperr.Internal("failed to update project "+p.ProjID, err)
				}
			}

			if err := svc.SetPlanAmounts(r.Context(), p.ProjID, pp.Plans); err != nil {
				return err
			}
			res.Created()
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res.Finish()
	h.log.Info("project master upload",
		zap.Int("fiscal_year", year),
		zap.Int("total", res.TotalCount),
		zap.Int("imported", res.SuccessCount),
		zap.Int("duplicates", res.DuplicateCount),
		zap.Int("invalid", res.InvalidCount))
	utils.WriteJSON(w, http.StatusOK, res)
}

func uploadYear(r *http.Request, sheet *importer.Sheet) (int, error) {
	if v := strings.TrimSpace(r.FormValue("year")); v != "" {
		year, err := parseYear(v)
		if err != nil || year == 0 {
			return 0, apperr.Validation("invalid year %q", v)
		}
		return year, nil
	}
	year, err := yearOfSheet(sheet)
	if err != nil {
		return 0, apperr.Validation("invalid 연도: %v", err)
	}
	if year == 0 {
		return 0, apperr.Validation("fiscal year missing: send a year field or fill the 연도 column")
	}
	return year, nil
}

// UploadSimple imports the simple template. Ids are numbered per department;
// a project with the same department, name and year is a duplicate.
func (h *Handler) UploadSimple(w http.ResponseWriter, r *http.Request) {
	sheet, err := importer.FromRequest(r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := sheet.Require(colDeptCode, colName, colYear); err != nil {
		h.fail(w, r, err)
		return
	}

	res := importer.BulkResult{TotalCount: len(sheet.Rows)}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		svc := h.ledgerIn(tx)
		for _, row := range sheet.Rows {
			pp, err := parseSimpleRow(row)
			var rowErr rowError
			if errors.As(err, &rowErr) {
				res.Reject(row.Line, rowErr.reason)
				continue
			}
			if err != nil {
				return err
			}
			p := pp.Project

			var n int64
			err = tx.Model(&Project{}).
				Where("dept_code = ? AND proj_name = ? AND fiscal_year = ?", p.DeptCode, p.ProjName, p.FiscalYear).
				Count(&n).Error
			if err != nil {
				return apperr.Internal("failed to check project", err)
			}
			if n > 0 {
				res.Duplicate(p.DeptCode + "/" + p.ProjName)
				continue
			}

			if p.ProjID, err = allocateID(tx, p.DeptCode); err != nil {
				return err
			}
			if err := tx.Create(&p).Error; err != nil {
				return apperr.Internal("failed to create project", err)
			}
			if err := svc.SetPlanAmounts(r.Context(), p.ProjID, pp.Plans); err != nil {
				return err
			}
			res.Created()
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res.Finish()
	utils.WriteJSON(w, http.StatusOK, res)
}
