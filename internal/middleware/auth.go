package middleware

import (
	"context"
	"net/http"
	"strings"

	"activity-storefront/internal/models"
	"activity-storefront/internal/services"

	"go.uber.org/zap"
)

const staffContextKey contextKey = "staff"

// TokenParser validates admin bearer tokens
type TokenParser interface {
	ParseToken(token string) (*services.StaffClaims, error)
}

// AuthMiddleware protects the admin API
type AuthMiddleware struct {
	tokens TokenParser
	logger *zap.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenParser, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// RequireStaff rejects requests without a valid bearer token and stores the
// token's claims in the request context.
func (m *AuthMiddleware) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			WriteError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}

		claims, err := m.tokens.ParseToken(token)
		if err != nil {
			m.logger.Warn("Rejected admin token",
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", ClientIP(r)),
				zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin", error="invalid_token"`)
			WriteError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), staffContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only staff with role, or admins
func (m *AuthMiddleware) RequireRole(role models.StaffRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := StaffFromContext(r.Context())
			if claims == nil {
				WriteError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			if claims.Role != role && claims.Role != models.StaffAdmin {
				WriteError(w, http.StatusForbidden, "Access denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StaffFromContext returns the claims stored by RequireStaff
func StaffFromContext(ctx context.Context) *services.StaffClaims {
	claims, _ := ctx.Value(staffContextKey).(*services.StaffClaims)
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
