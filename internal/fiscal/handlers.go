package fiscal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the utility endpoints used by the UI's year pickers.
func SetupRoutes(minYear int, now func() time.Time) http.Handler {
	r := chi.NewRouter()
	r.Get("/years", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Years(now(), minYear))
	})
	return r
}
