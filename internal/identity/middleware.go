package identity

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const (
	userIDKey contextKey = iota
	nameKey
)

// UserIDFromContext extracts the authenticated user ID from the request
// context. Empty when the request carried no valid credential.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// NameFromContext extracts the authenticated user's display name.
func NameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(nameKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUser returns a context carrying an authenticated identity.
// Used by the middleware and by handler tests.
func ContextWithUser(ctx context.Context, userID, name string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, nameKey, name)
}

func tokenFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	// Browser WebSocket clients cannot set headers on the upgrade request.
	return r.URL.Query().Get("token")
}

// Middleware verifies the request's bearer credential and injects the
// authenticated identity into the request context. Requests without a valid
// credential are rejected with 401.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w, "authorization token is required")
				return
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := ContextWithUser(r.Context(), claims.UserID, claims.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
