package closing

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
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

type statusUpdate struct {
	YYYYMM string `json:"yyyymm"`
	Status string `json:"status"`
	UserID string `json:"user_id"`
}

type bulkStatusUpdate struct {
	Months []string `json:"months"`
	Status string   `json:"status"`
	UserID string   `json:"user_id"`
}

type updateResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Period  *ledger.PeriodStatus  `json:"period,omitempty"`
	Periods []ledger.PeriodStatus `json:"periods,omitempty"`
}

// GetStatus returns the closing state of one month; months never closed
// report OPEN.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	month, err := fiscal.Parse(chi.URLParam(r, "yyyymm"))
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	p, err := h.svc.GetStatus(r.Context(), month)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdate
	if err := utils.DecodeJSON(r, &req); err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	month, err := fiscal.Parse(req.YYYYMM)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}
	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	p, err := h.svc.SetStatus(r.Context(), month, status, utils.Actor(r, req.UserID))
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, updateResponse{
		Status:  "success",
		Message: fmt.Sprintf("%s is now %s", month, p.Status),
		Period:  &p,
	})
}

// BulkUpdateStatus applies one status to several months at once. Either all
// months change or none do.
func (h *Handler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusUpdate
	if err := utils.DecodeJSON(r, &req); err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	months := make([]fiscal.Month, 0, len(req.Months))
	for _, raw := range req.Months {
		m, err := fiscal.Parse(raw)
		if err != nil {
			apperr.Write(w, r, h.log, err)
			return
		}
		months = append(months, m)
	}
	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	periods, err := h.svc.BulkSetStatus(r.Context(), months, status, utils.Actor(r, req.UserID))
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, updateResponse{
		Status:  "success",
		Message: fmt.Sprintf("%d months set to %s", len(periods), status),
		Periods: periods,
	})
}

func (h *Handler) YearStatus(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "yyyy"))
	if err != nil || year < 2000 || year > 2999 {
		apperr.Write(w, r, h.log, apperr.Validation("invalid year %q", chi.URLParam(r, "yyyy")))
		return
	}

	periods, err := h.svc.YearStatuses(r.Context(), year)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, periods)
}
