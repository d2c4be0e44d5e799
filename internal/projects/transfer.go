package projects

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/utils"
)

// Transfer moves plan budget between two projects within one month.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req ledger.TransferRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Actor = utils.Actor(r, req.Actor)

	entry, err := h.ledger.ExecuteTransfer(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, entry)
}

// ListTransfers filters the transfer log by ?yyyymm= and ?proj_id=.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.TransferFilter{ProjID: strings.TrimSpace(q.Get("proj_id"))}
	if v := q.Get("yyyymm"); v != "" {
		m, err := fiscal.Parse(v)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		f.Month = m
	}

	entries, err := h.ledger.ListTransfers(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.Transfer{}
	}
	utils.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	month, err := fiscal.Parse(chi.URLParam(r, "yyyymm"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.ledger.ProjectBalance(r.Context(), chi.URLParam(r, "proj_id"), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, b)
}
