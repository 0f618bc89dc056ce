// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finreview/pkg/domain"
	"finreview/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const ctxPrincipalKey contextKey = "principal"

// Identity claims read from bearer tokens.
const (
	ClaimUserID        = "user_id"
	ClaimRole          = "role"
	ClaimPrincipalType = "principal_type"
)

// AuthMiddleware validates bearer JWTs and injects the acting principal into the context.
type AuthMiddleware struct {
	jwtSecret string
	logger    logger.Logger
}

// NewAuthMiddleware constructs an AuthMiddleware with the given secret.
func NewAuthMiddleware(secret string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret, logger: log}
}

// Authenticate enforces bearer auth and populates the principal on the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				jsonError(w, http.StatusUnauthorized, "Token expired")
				return
			}
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		principal, err := PrincipalFromClaims(claims)
		if err != nil {
			m.logger.Warn("Rejected identity token", map[string]interface{}{
				"error":      err.Error(),
				"request_id": RequestIDFromContext(r.Context()),
			})
			jsonError(w, http.StatusUnauthorized, "Invalid identity claims")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// PrincipalFromClaims maps identity claims onto a principal. Admin tokens must
// name a known role; the stored profile stays authoritative for every decision.
func PrincipalFromClaims(claims jwt.MapClaims) (domain.Principal, error) {
	id, _ := claims[ClaimUserID].(string)
	if strings.TrimSpace(id) == "" {
		return domain.Principal{}, errors.New("token carries no user id")
	}

	typ, _ := claims[ClaimPrincipalType].(string)
	p := domain.Principal{ID: id, Type: domain.PrincipalType(typ)}
	switch p.Type {
	case domain.PrincipalAdmin:
		role, _ := claims[ClaimRole].(string)
		p.Role = domain.Role(role)
		if !p.Role.Valid() {
			return domain.Principal{}, errors.New("admin token carries an unknown role")
		}
	case domain.PrincipalBusiness, domain.PrincipalInvestor:
	default:
		return domain.Principal{}, errors.New("token carries an unknown principal type")
	}
	return p, nil
}

// WithPrincipal stores the acting principal on ctx.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// PrincipalFromContext returns the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(domain.Principal)
	return p, ok
}

// RequireAdmin refuses principals that are not on the admin team.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsAdmin() {
			jsonError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS restricts cross-origin access to allowed origins. With no allow list the
// request origin is reflected, which is only meant for development.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if len(allowed) > 0 {
				for _, o := range allowed {
					if strings.EqualFold(o, origin) {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
						break
					}
				}
			} else if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
