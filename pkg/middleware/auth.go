package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
)

// Resolver turns a bearer credential into a principal.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*rbac.Principal, error)
}

// AuthMiddleware attaches the principal named by the Authorization header.
// Requests without the header pass through anonymously and are rejected
// later by route guards if the route needs a principal.
type AuthMiddleware struct {
	resolver Resolver
	optional func(*http.Request) bool
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(resolver Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// WithOptional marks requests for which a bad or stale credential is
// ignored; they continue anonymously instead of getting a 401.
func (m *AuthMiddleware) WithOptional(fn func(*http.Request) bool) *AuthMiddleware {
	m.optional = fn
	return m
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. ok is false when the header is absent.
func BearerToken(r *http.Request) (token string, ok bool, err error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, nil
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", true, apperr.E(apperr.TokenInvalid, "invalid authorization header")
	}
	return strings.TrimSpace(token), true, nil
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present, err := BearerToken(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			m.reject(w, r, next, err)
			return
		}

		principal, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			m.reject(w, r, next, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(rbac.WithPrincipal(r.Context(), principal)))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
	logger := observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{"path": r.URL.Path, "kind": apperr.KindOf(err).String()})
	if m.optional != nil && m.optional(r) {
		logger.Debug("ignoring credential on public route")
		next.ServeHTTP(w, r)
		return
	}
	logger.Info("authentication failed")
	httputil.WriteError(w, err)
}
