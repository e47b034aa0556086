// Package middleware provides HTTP middlewares for user binding and logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const userKey ctxKey = "user"

// UIDHeader carries the caller's user id. Authentication itself happens
// upstream of this service; the header is trusted as-is.
const UIDHeader = "X-Uid"

// WithUser binds the caller's uid from the request header into the request
// context. Requests without a uid are rejected: every storage operation in
// the protection layer is scoped to a user.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get(UIDHeader)
		if uid == "" {
			http.Error(w, "missing user id", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext extracts the user ID from the request context.
// Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok {
		return s
	}
	return ""
}
