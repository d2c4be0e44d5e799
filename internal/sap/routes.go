package sap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/unmapped", h.Unmapped)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/upload", h.Upload)
		r.Post("/run-mapping", h.RunMapping)
		r.Post("/manual-map", h.ManualMap)
		r.Post("/sync-actuals", h.SyncActuals)
	})

	return r
}
