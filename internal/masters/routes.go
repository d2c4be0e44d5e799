package masters

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupVendorRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListVendors)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/", h.CreateVendor)
		r.Post("/bulk", h.BulkVendors)
	})

	return r
}

func SetupServiceRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListServices)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/", h.CreateService)
		r.Post("/bulk", h.BulkServices)
	})

	return r
}

func SetupAccountRoutes(h *Handler, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/gl", h.ListGLAccounts)
	r.Get("/cost-center", h.ListCostCenters)
	r.Get("/budget-code", h.ListBudgetCodes)
	r.Get("/budget-code/tree", h.BudgetCodeTree)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/gl", h.CreateGLAccount)
		r.Post("/cost-center", h.CreateCostCenter)
		r.Post("/budget-code", h.CreateBudgetCode)
		r.Patch("/budget-code/{code_id}", h.UpdateBudgetCode)
		r.Delete("/budget-code/{code_id}", h.DeleteBudgetCode)
	})

	return r
}
