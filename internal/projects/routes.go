package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListProjects)
	r.Get("/transfers", h.ListTransfers)
	r.Get("/{proj_id}", h.GetProject)
	r.Get("/{proj_id}/balance/{yyyymm}", h.Balance)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/", h.CreateProject)
		r.Patch("/{proj_id}", h.UpdateProject)
		r.Delete("/{proj_id}", h.DeleteProject)
		r.Post("/upload-bulk", h.UploadSimple)
		r.Post("/master/bulk", h.UploadMaster)
		r.Post("/transfer", h.Transfer)
	})

	return r
}
