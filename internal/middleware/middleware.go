package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/itopex/opex-backend/internal/utils"
)

type SessionFetcher interface {
	FindSessionByID(id string) (utils.SessionData, error)
}

// AccessFetcher also resolves the role of a user for AdminMiddleware.
type AccessFetcher interface {
	SessionFetcher
	FindUserRole(userID string) (string, error)
}

func SessionMiddleware(fetcher SessionFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil {
				http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
				return
			}

			session, err := fetcher.FindSessionByID(cookie.Value)
			if err != nil {
				http.Error(w, "Couldn't find session", http.StatusUnauthorized)
				return
			}

			if session.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Session expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), utils.ContextUserIDKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession attaches the session user when a valid cookie is present
// and lets every request through.
func OptionalSession(fetcher SessionFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			session, err := fetcher.FindSessionByID(cookie.Value)
			if err != nil || session.ExpiresAt.Before(time.Now()) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), utils.ContextUserIDKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminMiddleware(fetcher AccessFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
				return
			}

			role, err := fetcher.FindUserRole(userID)
			if err != nil {
				http.Error(w, "Unauthorized: user not found", http.StatusUnauthorized)
				return
			}

			if role != "admin" {
				http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth chains session and admin checks when enabled; otherwise it
// only attaches an optional session.
func RequireAuth(enabled bool, fetcher AccessFetcher) func(http.Handler) http.Handler {
	if !enabled {
		return OptionalSession(fetcher)
	}
	session := SessionMiddleware(fetcher)
	admin := AdminMiddleware(fetcher)
	return func(next http.Handler) http.Handler {
		return session(admin(next))
	}
}
