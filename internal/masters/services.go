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

const serviceIDPrefix = "SVC-"

const (
	colSvcID        = "서비스ID"
	colSvcName      = "서비스명"
	colContractType = "계약 유형"
	colResident     = "상주 여부"
	colOperators    = "운영자"
)

type serviceInput struct {
	SvcID         string   `json:"svc_id"`
	SvcName       string   `json:"svc_name"`
	ContractType  string   `json:"contract_type"`
	IsResident    bool     `json:"is_resident"`
	OperatorNames []string `json:"operator_names"`
	IsActive      *bool    `json:"is_active"`
}

func (in serviceInput) service() (ITService, error) {
	s := ITService{
		SvcID:         strings.TrimSpace(in.SvcID),
		SvcName:       strings.TrimSpace(in.SvcName),
		ContractType:  strings.TrimSpace(in.ContractType),
		IsResident:    in.IsResident,
		OperatorNames: in.OperatorNames,
		IsActive:      true,
	}
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
	if s.SvcName == "" {
		return ITService{}, apperr.Validation("svc_name is required")
	}
	return s, nil
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var services []ITService
	if err := h.db.WithContext(r.Context()).Order("svc_id").Offset(skip).Limit(limit).Find(&services).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch services", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, services)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var in serviceInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := in.service()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		return createService(tx, &s)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, s)
}

func createService(tx *gorm.DB, s *ITService) error {
	if s.SvcID == "" {
		id, err := uniqueID(tx, "opex.it_services", "svc_id", serviceIDPrefix)
		if err != nil {
			return apperr.Internal("failed to allocate service id", err)
		}
		s.SvcID = id
	}
	if err := tx.Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("service %s already exists", s.SvcID)
		}
		return apperr.Internal("failed to create service", err)
	}
	return nil
}

// BulkServices imports a service sheet keyed by service name.
func (h *Handler) BulkServices(w http.ResponseWriter, r *http.Request) {
	sheet, err := importer.FromRequest(r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := sheet.Require(colSvcName); err != nil {
		h.fail(w, r, err)
		return
	}
	overwrite := overwriteParam(r)

	res := importer.BulkResult{TotalCount: len(sheet.Rows)}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]bool)
		for _, row := range sheet.Rows {
			s, err := serviceInput{
				SvcID:         row.Get(colSvcID),
				SvcName:       row.Get(colSvcName),
				ContractType:  row.Get(colContractType),
				IsResident:    parseFlag(row.Get(colResident)),
				OperatorNames: splitNames(row.Get(colOperators)),
			}.service()
			if err != nil {
				return apperr.Validation("line %d: %s", row.Line, err.Error())
			}
			key := strings.ToLower(s.SvcName)
			if seen[key] {
				res.Duplicate(s.SvcName)
				continue
			}
			seen[key] = true

			var existing ITService
			err = tx.Where("LOWER(svc_name) = ?", key).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := createService(tx, &s); err != nil {
					return err
				}
				res.Created()
			case err != nil:
				return apperr.Internal("failed to check service", err)
			case !overwrite:
				res.Duplicate(s.SvcName)
			default:
				updates := map[string]any{
					"contract_type":  s.ContractType,
					"is_resident":    s.IsResident,
					"operator_names": s.OperatorNames,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return apperr.Internal("failed to update service", err)
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
	h.log.Info("service bulk import",
		zap.Int("total", res.TotalCount),
		zap.Int("imported", res.SuccessCount),
		zap.Int("duplicates", res.DuplicateCount))
	utils.WriteJSON(w, http.StatusOK, res)
}
