package execution

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/{yyyymm}", h.MonthlyStatus)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/update-forecast", h.UpdateForecast)
		r.Post("/finalize-month", h.FinalizeMonth)
	})

	return r
}
