package execution

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/utils"
)

type Handler struct {
	svc *ledger.Service
	log *zap.Logger
}

func NewHandler(svc *ledger.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

type forecastUpdate struct {
	ProjID string          `json:"proj_id"`
	YYYYMM string          `json:"yyyymm"`
	EstAmt decimal.Decimal `json:"est_amt"`
}

type finalizeRequest struct {
	YYYYMM string `json:"yyyymm"`
	UserID string `json:"user_id"`
}

// MonthlyStatus lists every project of the month's fiscal year with its plan,
// actual and forecast amounts. Projects without a record show zeros.
func (h *Handler) MonthlyStatus(w http.ResponseWriter, r *http.Request) {
	month, err := fiscal.Parse(chi.URLParam(r, "yyyymm"))
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	rows, err := h.svc.MonthlyStatus(r.Context(), month)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) UpdateForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastUpdate
	if err := utils.DecodeJSON(r, &req); err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}
	req.ProjID = strings.TrimSpace(req.ProjID)
	if req.ProjID == "" {
		apperr.Write(w, r, h.log, apperr.Validation("proj_id is required"))
		return
	}

	month, err := fiscal.Parse(req.YYYYMM)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	rec, err := h.svc.UpdateForecast(r.Context(), req.ProjID, month, req.EstAmt)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"record": rec,
	})
}

func (h *Handler) FinalizeMonth(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	month, err := fiscal.Parse(req.YYYYMM)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	records, err := h.svc.FinalizeMonth(r.Context(), month, utils.Actor(r, req.UserID))
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	finalized := 0
	for _, rec := range records {
		if rec.IsActualFinalized {
			finalized++
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   fmt.Sprintf("actuals of %s finalized", month),
		"finalized": finalized,
	})
}
