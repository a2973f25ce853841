// Package middleware provides the request-scoped HTTP middleware that sits
// in front of every route: bearer authentication and rate limiting.
//
// # Authentication
//
// AuthMiddleware reads "Authorization: Bearer <token>", resolves it to an
// rbac.Principal and stores the principal in the request context. A request
// without the header continues anonymously; a malformed or unresolvable
// credential is answered with 401 immediately. Route guards from the rbac
// package decide whether an anonymous request may proceed.
//
//	authn := middleware.NewAuthMiddleware(resolver)
//	router.Use(authn.Handler)
//
// # Rate Limiting
//
// Two Limiter implementations share one middleware:
//
//	limiter := middleware.NewRateLimiter(nil)                          // per process
//	limiter := middleware.NewDistributedRateLimiter(rdb, nil, "")      // shared via Redis
//	router.Use(middleware.RateLimitMiddleware(limiter, metrics))
//
// Callers are keyed by principal name when authenticated and by client IP
// otherwise. Rejections use the 429 envelope and set Retry-After. When the
// limiter itself fails the request is allowed.
package middleware
