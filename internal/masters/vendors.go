package masters

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/importer"
	"github.com/itopex/opex-backend/internal/utils"
)

const vendorIDPrefix = "V"

// Vendor upload columns.
const (
	colVendorID   = "업체ID"
	colVendorName = "업체명"
	colBizRegNo   = "사업자등록번호"
	colSAPVendor  = "SAP 코드"
	colAliases    = "별칭"
)

type vendorInput struct {
	VendorID    string   `json:"vendor_id"`
	BizRegNo    string   `json:"biz_reg_no"`
	VendorName  string   `json:"vendor_name"`
	SAPVendorCd string   `json:"sap_vendor_cd"`
	Aliases     []string `json:"aliases"`
	IsActive    *bool    `json:"is_active"`
}

func (in vendorInput) vendor() (Vendor, error) {
	v := Vendor{
		VendorID:    strings.TrimSpace(in.VendorID),
		BizRegNo:    normalizeBizRegNo(in.BizRegNo),
		VendorName:  strings.TrimSpace(in.VendorName),
		SAPVendorCd: strings.TrimSpace(in.SAPVendorCd),
		Aliases:     in.Aliases,
		IsActive:    true,
	}
	if in.IsActive != nil {
		v.IsActive = *in.IsActive
	}
	if v.VendorName == "" || v.BizRegNo == "" {
		return Vendor{}, apperr.Validation("vendor_name and biz_reg_no are required")
	}
	if len(v.VendorID) > 20 {
		return Vendor{}, apperr.Validation("vendor_id must be at most 20 characters")
	}
	return v, nil
}

// normalizeBizRegNo strips the separators of a business registration number
// so "123-45-67890" and "1234567890" are the same vendor.
func normalizeBizRegNo(s string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
}

func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var vendors []Vendor
	if err := h.db.WithContext(r.Context()).Order("vendor_id").Offset(skip).Limit(limit).Find(&vendors).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch vendors", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, vendors)
}

func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var in vendorInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := in.vendor()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		return createVendor(tx, &v)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, v)
}

func createVendor(tx *gorm.DB, v *Vendor) error {
	var n int64
	if err := tx.Model(&Vendor{}).Where("biz_reg_no = ?", v.BizRegNo).Count(&n).Error; err != nil {
		return apperr.Internal("failed to check vendor", err)
	}
	if n > 0 {
		return apperr.Conflict("business registration number %s is already registered", v.BizRegNo)
	}

	if v.VendorID == "" {
		id, err := uniqueID(tx, "opex.vendors", "vendor_id", vendorIDPrefix)
		if err != nil {
			return apperr.Internal("failed to allocate vendor id", err)
		}
		v.VendorID = id
	}

	if err := tx.Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("vendor %s already exists", v.VendorID)
		}
		return apperr.Internal("failed to create vendor", err)
	}
	return nil
}

func vendorFromRow(row importer.Row) (Vendor, error) {
	return vendorInput{
		VendorID:    row.Get(colVendorID),
		BizRegNo:    row.Get(colBizRegNo),
		VendorName:  row.Get(colVendorName),
		SAPVendorCd: row.Get(colSAPVendor),
		Aliases:     splitNames(row.Get(colAliases)),
	}.vendor()
}

// BulkVendors imports a vendor sheet. Rows are keyed by business registration
// number; existing vendors are updated only with ?overwrite=true.
func (h *Handler) BulkVendors(w http.ResponseWriter, r *http.Request) {
	sheet, err := importer.FromRequest(r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := sheet.Require(colVendorName, colBizRegNo); err != nil {
		h.fail(w, r, err)
		return
	}
	overwrite := overwriteParam(r)

	res := importer.BulkResult{TotalCount: len(sheet.Rows)}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]bool)
		for _, row := range sheet.Rows {
			v, err := vendorFromRow(row)
			if err != nil {
				return apperr.Validation("line %d: %s", row.Line, err.Error())
			}
			if seen[v.BizRegNo] {
				res.Duplicate(v.BizRegNo)
				continue
			}
			seen[v.BizRegNo] = true

			var existing Vendor
			err = tx.Where("biz_reg_no = ?", v.BizRegNo).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := createVendor(tx, &v); err != nil {
					return err
				}
				res.Created()
			case err != nil:
				return apperr.Internal("failed to check vendor", err)
			case !overwrite:
				res.Duplicate(v.BizRegNo)
			default:
				updates := map[string]any{
					"vendor_name":   v.VendorName,
					"sap_vendor_cd": v.SAPVendorCd,
					"aliases":       v.Aliases,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return apperr.Internal("failed to update vendor", err)
				}
				res.Created()
			}
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res.Finish()
	h.log.Info("vendor bulk import",
		zap.Int("total", res.TotalCount),
		zap.Int("imported", res.SuccessCount),
		zap.Int("duplicates", res.DuplicateCount),
		zap.Bool("overwrite", overwrite))
	utils.WriteJSON(w, http.StatusOK, res)
}
