package closing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the closing endpoints. guard wraps the mutating routes.
func SetupRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/status/{yyyymm}", h.GetStatus)
	r.Get("/year/{yyyy}", h.YearStatus)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/update", h.UpdateStatus)
		r.Post("/bulk-update", h.BulkUpdateStatus)
	})

	return r
}
