package sap

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/importer"
	"github.com/itopex/opex-backend/internal/utils"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperr.Write(w, r, h.log, err)
}

// Upload stores an SAP line item export sent as multipart field "file".
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sheet, err := importer.FromRequest(r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Import(r.Context(), sheet)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) RunMapping(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AutoMap(r.Context(), utils.Actor(r, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Unmapped(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Unmapped(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []Posting{}
	}
	utils.WriteJSON(w, http.StatusOK, rows)
}

type manualMapRequest struct {
	RawIDs       []uint `json:"raw_ids"`
	TargetProjID string `json:"target_proj_id"`
	UserID       string `json:"user_id"`
}

func (h *Handler) ManualMap(w http.ResponseWriter, r *http.Request) {
	var req manualMapRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.ManualMap(r.Context(), req.RawIDs, strings.TrimSpace(req.TargetProjID), utils.Actor(r, req.UserID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// SyncActuals recomputes actuals from the mapped postings.
func (h *Handler) SyncActuals(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SyncActuals(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}
