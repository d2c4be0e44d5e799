package masters

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/utils"
)

func (h *Handler) ListGLAccounts(w http.ResponseWriter, r *http.Request) {
	var accounts []GLAccount
	if err := h.db.WithContext(r.Context()).Where("is_active").Order("gl_account_code").Find(&accounts).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch G/L accounts", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, accounts)
}

func (h *Handler) CreateGLAccount(w http.ResponseWriter, r *http.Request) {
	var a GLAccount
	if err := utils.DecodeJSON(r, &a); err != nil {
		h.fail(w, r, err)
		return
	}
	a.GLAccountCode = strings.TrimSpace(a.GLAccountCode)
	a.GLAccountName = strings.TrimSpace(a.GLAccountName)
	if a.GLAccountCode == "" || a.GLAccountName == "" {
		h.fail(w, r, apperr.Validation("gl_account_code and gl_account_name are required"))
		return
	}
	a.IsActive = true

	if err := h.db.WithContext(r.Context()).Create(&a).Error; err != nil {
		if isUniqueViolation(err) {
			h.fail(w, r, apperr.Conflict("G/L account %s already exists", a.GLAccountCode))
			return
		}
		h.fail(w, r, apperr.Internal("failed to create G/L account", err))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) ListCostCenters(w http.ResponseWriter, r *http.Request) {
	var centers []CostCenter
	if err := h.db.WithContext(r.Context()).Where("is_active").Order("cc_code").Find(&centers).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch cost centers", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, centers)
}

func (h *Handler) CreateCostCenter(w http.ResponseWriter, r *http.Request) {
	var c CostCenter
	if err := utils.DecodeJSON(r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	c.CCCode = strings.TrimSpace(c.CCCode)
	c.CCName = strings.TrimSpace(c.CCName)
	if c.CCCode == "" || c.CCName == "" {
		h.fail(w, r, apperr.Validation("cc_code and cc_name are required"))
		return
	}
	c.IsActive = true

	if err := h.db.WithContext(r.Context()).Create(&c).Error; err != nil {
		if isUniqueViolation(err) {
			h.fail(w, r, apperr.Conflict("cost center %s already exists", c.CCCode))
			return
		}
		h.fail(w, r, apperr.Internal("failed to create cost center", err))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListBudgetCodes(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Where("is_active")
	if t := r.URL.Query().Get("code_type"); t != "" {
		q = q.Where("code_type = ?", strings.ToUpper(t))
	}

	var codes []BudgetCode
	if err := q.Order("sort_order, code_id").Find(&codes).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch budget codes", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, codes)
}

// BudgetCodeTree returns active codes nested L1 → L2.
func (h *Handler) BudgetCodeTree(w http.ResponseWriter, r *http.Request) {
	var codes []BudgetCode
	if err := h.db.WithContext(r.Context()).Where("is_active").Find(&codes).Error; err != nil {
		h.fail(w, r, apperr.Internal("failed to fetch budget codes", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, buildCodeTree(codes))
}

type budgetCodeInput struct {
	Name         string  `json:"name"`
	CodeType     string  `json:"code_type"`
	ParentCodeID *string `json:"parent_code_id"`
	SortOrder    int     `json:"sort_order"`
	IsActive     *bool   `json:"is_active"`
}

func findCode(tx *gorm.DB, id string) (*BudgetCode, error) {
	var c BudgetCode
	err := tx.First(&c, "code_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load budget code", err)
	}
	return &c, nil
}

// resolveParent loads the parent named by id; blank ids mean no parent.
func resolveParent(tx *gorm.DB, id *string) (*BudgetCode, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	parent, err := findCode(tx, strings.TrimSpace(*id))
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.Validation("parent code %s does not exist", *id)
	}
	return parent, nil
}

func (h *Handler) CreateBudgetCode(w http.ResponseWriter, r *http.Request) {
	var in budgetCodeInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.CodeType = strings.ToUpper(strings.TrimSpace(in.CodeType))
	if in.Name == "" || in.CodeType == "" {
		h.fail(w, r, apperr.Validation("name and code_type are required"))
		return
	}
	if !validCodeType(in.CodeType) {
		h.fail(w, r, apperr.Validation("unknown code_type %q", in.CodeType))
		return
	}

	var code BudgetCode
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		parent, err := resolveParent(tx, in.ParentCodeID)
		if err != nil {
			return err
		}
		if err := checkParent(in.CodeType, parent); err != nil {
			return err
		}

		// Serialize numbering per type.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "budget_code:"+in.CodeType).Error; err != nil {
			return apperr.Internal("failed to lock code numbering", err)
		}
		var ids []string
		if err := tx.Model(&BudgetCode{}).Where("code_type = ?", in.CodeType).Pluck("code_id", &ids).Error; err != nil {
			return apperr.Internal("failed to read budget codes", err)
		}

		code = BudgetCode{
			CodeID:    nextCodeID(in.CodeType, ids),
			CodeName:  in.Name,
			CodeType:  in.CodeType,
			SortOrder: in.SortOrder,
			IsActive:  in.IsActive == nil || *in.IsActive,
		}
		if parent != nil {
			code.ParentCodeID = &parent.CodeID
		}
		if err := tx.Create(&code).Error; err != nil {
			return apperr.Internal("failed to create budget code", err)
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, code)
}

type budgetCodePatch struct {
	Name         *string        `json:"name"`
	IsActive     *bool          `json:"is_active"`
	SortOrder    *int           `json:"sort_order"`
	ParentCodeID optionalString `json:"parent_code_id"`
}

func (h *Handler) UpdateBudgetCode(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "code_id")

	var patch budgetCodePatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}

	var code *BudgetCode
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = findCode(tx, codeID)
		if err != nil {
			return err
		}
		if code == nil {
			return apperr.NotFound("budget code %s not found", codeID)
		}

		updates := map[string]any{}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperr.Validation("name must not be blank")
			}
			updates["code_name"] = name
		}
		if patch.IsActive != nil {
			updates["is_active"] = *patch.IsActive
		}
		if patch.SortOrder != nil {
			updates["sort_order"] = *patch.SortOrder
		}
		if patch.ParentCodeID.Set {
			parent, err := resolveParent(tx, patch.ParentCodeID.Value)
			if err != nil {
				return err
			}
			if parent != nil && parent.CodeID == code.CodeID {
				return apperr.Validation("a code cannot be its own parent")
			}
			if err := checkParent(code.CodeType, parent); err != nil {
				return err
			}
			if parent != nil {
				updates["parent_code_id"] = parent.CodeID
			} else {
				updates["parent_code_id"] = nil
			}
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(code).Updates(updates).Error; err != nil {
			return apperr.Internal("failed to update budget code", err)
		}
		return tx.First(code, "code_id = ?", codeID).Error
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, code)
}

// DeleteBudgetCode refuses codes that still have children or are used by a
// project.
func (h *Handler) DeleteBudgetCode(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "code_id")

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		code, err := findCode(tx, codeID)
		if err != nil {
			return err
		}
		if code == nil {
			return apperr.NotFound("budget code %s not found", codeID)
		}

		var children int64
		if err := tx.Model(&BudgetCode{}).Where("parent_code_id = ?", codeID).Count(&children).Error; err != nil {
			return apperr.Internal("failed to check child codes", err)
		}
		if children > 0 {
			return apperr.ErrReferenced.WithMessage("code %s has %d child codes; delete or move them first", codeID, children)
		}

		var used int64
		err = tx.Table("opex.projects").
			Where("budget_l2 = ? OR budget_s2 = ? OR budget_it_type = ?", codeID, codeID, codeID).
			Count(&used).Error
		if err != nil {
			return apperr.Internal("failed to check project references", err)
		}
		if used > 0 {
			return apperr.ErrReferenced.WithMessage("code %s is used by %d projects", codeID, used)
		}

		if err := tx.Delete(code).Error; err != nil {
			return apperr.Internal("failed to delete budget code", err)
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
