// ABOUTME: HTTP middleware for JWT authentication on admin API endpoints
// ABOUTME: Extracts the bearer token and adds the admin identity to context

package auth

import (
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// RequireAdmin rejects requests without a valid admin token. A nil
// Authenticator means open mode and every request passes as "admin".
func RequireAdmin(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				ctx := WithAuth(r.Context(), &AuthContext{Name: "admin", Role: RoleAdmin})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			name, err := a.VerifyAdmin(token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := WithAuth(r.Context(), &AuthContext{Name: name, Role: RoleAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
