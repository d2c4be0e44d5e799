package report

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/utils"
)

type Handler struct {
	builder *Builder
	log     *zap.Logger
	now     func() time.Time
}

func NewHandler(b *Builder, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{builder: b, log: log, now: time.Now}
}

// year reads ?year=, defaulting to the current year.
func (h *Handler) year(r *http.Request) (int, error) {
	v := r.URL.Query().Get("year")
	if v == "" {
		return h.now().Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 2000 || year > 2999 {
		return 0, apperr.Validation("invalid year %q", v)
	}
	return year, nil
}

// BudgetVsActual serves the report as JSON, or as a workbook with
// ?format=xlsx.
func (h *Handler) BudgetVsActual(w http.ResponseWriter, r *http.Request) {
	year, err := h.year(r)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}
	rows, err := h.builder.BudgetVsActual(r.Context(), year)
	if err != nil {
		apperr.Write(w, r, h.log, err)
		return
	}

	if r.URL.Query().Get("format") != "xlsx" {
		utils.WriteJSON(w, http.StatusOK, rows)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="budget-vs-actual-%d.xlsx"`, year))
	if err := WriteXLSX(w, year, rows); err != nil {
		h.log.Error("failed to write report workbook", zap.Int("year", year), zap.Error(err))
	}
}
