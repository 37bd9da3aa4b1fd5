//
//
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/radio-control/netctl/internal/audit"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// ContextKey is used for storing claims in request context.
type ContextKey string

const (
	ClaimsKey ContextKey = "claims"
)

// Roles
const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

// Scopes
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// HealthPath is served without authentication.
const HealthPath = "/api/v1/health"

// TokenVerifier turns a bearer token into claims.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

// Middleware handles authentication and authorization.
type Middleware struct {
	verifier TokenVerifier
}

// NewMiddleware creates middleware with authentication disabled: every
// request runs as an anonymous controller.
func NewMiddleware() *Middleware {
	return &Middleware{}
}

// NewMiddlewareWithVerifier creates a new auth middleware with a JWT verifier.
func NewMiddlewareWithVerifier(verifier TokenVerifier) *Middleware {
	return &Middleware{
		verifier: verifier,
	}
}

// Enabled reports whether tokens are checked.
func (m *Middleware) Enabled() bool {
	return m.verifier != nil
}

// anonymous holds the claims used when authentication is disabled.
var anonymous = Claims{
	Subject: "anonymous",
	Roles:   []string{RoleController},
	Scopes:  []string{ScopeRead, ScopeControl, ScopeTelemetry},
}

// RequireAuth creates middleware that requires authentication.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			next(w, r)
			return
		}

		claims, err := m.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = audit.WithUser(ctx, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope creates middleware that requires specific scopes.
func (m *Middleware) RequireScope(requiredScopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromRequest(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
				return
			}
			if !hasRequiredScopes(claims, requiredScopes) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions",
					map[string]interface{}{"required": requiredScopes})
				return
			}
			next(w, r)
		}
	}
}

func (m *Middleware) authenticate(r *http.Request) (*Claims, error) {
	if m.verifier == nil {
		c := anonymous
		return &c, nil
	}
	token, err := extractBearerToken(r)
	if err != nil {
		return nil, err
	}
	return m.verifier.VerifyToken(token)
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

// hasRequiredScopes checks if the user has all required scopes.
func hasRequiredScopes(claims *Claims, requiredScopes []string) bool {
	if claims == nil {
		return false
	}

	for _, required := range requiredScopes {
		found := false
		for _, scope := range claims.Scopes {
			if scope == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GetClaimsFromRequest extracts claims from the request context.
func GetClaimsFromRequest(r *http.Request) *Claims {
	claims, ok := r.Context().Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// CanControl checks if the user can perform control operations.
func CanControl(claims *Claims) bool {
	return hasRequiredScopes(claims, []string{ScopeControl})
}

// writeError writes an error response in the API format.
func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": uuid.NewString(),
	}
	if details != nil {
		response["details"] = details
	}

	_ = json.NewEncoder(w).Encode(response)
}
