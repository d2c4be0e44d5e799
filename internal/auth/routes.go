package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itopex/opex-backend/internal/middleware"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessionFetcher := SessionInfo{}

	r.Post("/login", LoginHandler)
	r.Post("/register", RegisterHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))

		r.Post("/logout", LogoutHandler)
		r.Get("/me", MeHandler)
		r.Post("/password", UpdatePasswordHandler)
	})

	return r
}
