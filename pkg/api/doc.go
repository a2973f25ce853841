// Package api provides the HTTP API server for adminkit.
//
// # Overview
//
// The server mounts every route under a prefix (default /api/v1) on a
// gorilla/mux router. Routes are declared by the owning packages as
// rbac.Endpoint values; the server wraps each handler with its guard and,
// for cacheable GET routes, the response cache:
//
//	guard -> response cache -> handler
//
// The guard runs first so a cached response is never served to a caller
// that lacks the permission for it.
//
// # Middleware
//
// Outside the router, in order: request id, X-Response-Time, access log,
// panic recovery, CORS, OpenTelemetry spans. On the API subrouter: HTTP
// metrics, the audit recorder, bearer authentication, then rate limiting
// keyed by principal name or client IP.
//
// # Usage
//
//	server := api.NewServer(api.Options{APIPrefix: cfg.App.APIPrefix}, api.Dependencies{
//	    Users:    api.NewUserHandlers(userService, tokens),
//	    Resolver: resolver,
//	    Roles:    rbac.NewHandlers(roleStore, responseCache),
//	    Todos:    todos.NewHandlers(todos.NewStore(db)),
//	})
//	http.ListenAndServe(":8080", server)
//
// Health and metrics are served separately by HealthHandler, usually on
// the health port.
package api
