package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/auth"
	"github.com/cuidamed/backend/internal/model"
)

// SessionCookieName is the cookie carrying the session credential.
const SessionCookieName = "authToken"

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// SessionGuard extracts the session credential from the cookie, validates
// signature and expiry, and attaches identity and role to the request
// context. All failure modes collapse to a single 401; the caller learns
// nothing about why the credential was rejected.
func SessionGuard(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				respondWithError(w, http.StatusUnauthorized, "access denied")
				return
			}

			claims, err := jwtService.VerifyToken(cookie.Value)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose attached role is not in the allowed set.
// It assumes SessionGuard ran first and does not itself validate the credential.
func RequireRole(allowed ...model.Role) func(http.Handler) http.Handler {
	allowedSet := make(map[model.Role]bool, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRole(r.Context())
			if !ok || !allowedSet[role] {
				respondWithError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts the authenticated account ID from the context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// GetRole extracts the authenticated role from the context
func GetRole(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey).(model.Role)
	return role, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
