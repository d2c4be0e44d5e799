package utils

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const ContextUserIDKey contextKey = "userID"

type SessionData struct {
	UserID    string
	ExpiresAt time.Time
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

func GenerateUUID() string {
	return uuid.NewString()
}

// Actor names the user behind a mutation: the session user when logged in,
// otherwise the user id supplied in the request body.
func Actor(r *http.Request, claimed string) string {
	if userID, ok := GetUserIDFromContext(r.Context()); ok && userID != "" {
		return userID
	}
	return strings.TrimSpace(claimed)
}
