package rbac

import (
	"context"
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

var errUnauthenticated = apperr.E(apperr.TokenInvalid, "authentication required")

// WithPrincipal stores the request principal in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = contextkeys.WithPrincipal(ctx, p)
	return contextkeys.WithUserName(ctx, p.Name())
}

// PrincipalFromContext returns the request principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p
}

// RequireAuthenticated rejects requests that carry no principal.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			httputil.WriteError(w, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission runs Guard for code before the handler. metrics may be
// nil.
func RequirePermission(code string, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				httputil.WriteError(w, errUnauthenticated)
				return
			}

			err := Guard(principal, code)
			if metrics != nil {
				metrics.ObservePermissionCheck(code, err == nil)
			}
			if err != nil {
				observability.FromContext(r.Context()).
					WithFields(map[string]interface{}{"permission": code, "role": roleCode(principal)}).
					Info("permission denied")
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Protect wraps h with the guard route declares.
func Protect(route Route, h http.Handler, metrics *observability.Metrics) http.Handler {
	if route.Public {
		return h
	}
	if route.Permission == "" {
		return RequireAuthenticated(h)
	}
	return RequirePermission(route.Permission, metrics)(h)
}

func roleCode(p *Principal) string {
	if p.role == nil {
		return ""
	}
	return p.role.Code
}
