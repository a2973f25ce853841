package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/adminkit/pkg/audit"
	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/middleware"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/todos"
)

// DefaultAPIPrefix is the path every API route is mounted under.
const DefaultAPIPrefix = "/api/v1"

// DefaultMaxBodyBytes caps request bodies outside avatar uploads.
const DefaultMaxBodyBytes = 1 << 20

// Options are the HTTP-level settings of a Server.
type Options struct {
	APIPrefix    string
	CORSOrigins  []string
	MaxBodyBytes int64
	// TrustedProxies may set the client address through forwarding
	// headers. Empty means the peer address is always used.
	TrustedProxies middleware.TrustedProxies
}

// Dependencies are the collaborators a Server routes to. Users, Resolver,
// Roles and Todos are required; the rest may be nil.
type Dependencies struct {
	Users    *UserHandlers
	Resolver middleware.Resolver
	Roles    *rbac.Handlers
	Todos    *todos.Handlers
	Audit    *audit.Handlers
	Recorder *audit.Recorder
	Cache    *cache.ResponseCache
	Limiter  middleware.Limiter
	Metrics  *observability.Metrics
	Logger   *observability.Logger
}

// Server is the adminkit HTTP API.
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options
	deps    Dependencies
}

// NewServer builds the router and middleware chain.
func NewServer(opts Options, deps Dependencies) *Server {
	if opts.APIPrefix == "" {
		opts.APIPrefix = DefaultAPIPrefix
	}
	opts.APIPrefix = "/" + strings.Trim(opts.APIPrefix, "/")
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		deps:   deps,
	}
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		opts.TrustedProxies.Middleware,
		httputil.TimingMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.CORSMiddleware(opts.CORSOrigins),
	)(observability.InstrumentHandler(s.router, "adminkit"))

	return s
}

func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = httputil.NotFoundHandler()
	s.router.MethodNotAllowedHandler = httputil.MethodNotAllowedHandler()

	s.setupBaseRoutes()

	api := s.router.PathPrefix(s.opts.APIPrefix).Subrouter()
	api.NotFoundHandler = httputil.NotFoundHandler()
	api.MethodNotAllowedHandler = httputil.MethodNotAllowedHandler()

	if s.deps.Metrics != nil {
		api.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	if s.deps.Recorder != nil {
		api.Use(s.deps.Recorder.Middleware)
	}
	// Public routes ignore stale credentials so an expired token never
	// blocks a fresh login.
	public := make(map[*mux.Route]bool)
	api.Use(middleware.NewAuthMiddleware(s.deps.Resolver).
		WithOptional(func(r *http.Request) bool { return public[mux.CurrentRoute(r)] }).
		Handler)
	if s.deps.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(s.deps.Limiter, s.deps.Metrics))
	}

	var endpoints []rbac.Endpoint
	endpoints = append(endpoints, s.deps.Users.Endpoints()...)
	endpoints = append(endpoints, s.deps.Roles.Endpoints()...)
	endpoints = append(endpoints, s.deps.Todos.Endpoints()...)
	if s.deps.Audit != nil {
		endpoints = append(endpoints, s.deps.Audit.Endpoints()...)
	}

	for _, ep := range endpoints {
		route := api.Handle(ep.Path, s.wrap(ep)).Methods(ep.Method)
		if ep.Public {
			public[route] = true
		}
	}
}

// setupBaseRoutes mounts the routes that live outside the API prefix: a
// heartbeat and POST /login, the OAuth2 token URL, which is the same handler
// as POST {prefix}/users/login.
func (s *Server) setupBaseRoutes() {
	base := s.router.NewRoute().Subrouter()
	base.MethodNotAllowedHandler = httputil.MethodNotAllowedHandler()
	if s.deps.Metrics != nil {
		base.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	if s.deps.Recorder != nil {
		base.Use(s.deps.Recorder.Middleware)
	}
	if s.deps.Limiter != nil {
		base.Use(middleware.RateLimitMiddleware(s.deps.Limiter, s.deps.Metrics))
	}

	base.HandleFunc("/", heartbeat).Methods(http.MethodGet)
	base.Handle("/login", httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes)(http.HandlerFunc(s.deps.Users.login))).
		Methods(http.MethodPost)
}

func heartbeat(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// wrap applies the body limit, the response cache and the route guard. The
// guard is outermost so a cached body is never served to a caller the guard
// would reject.
func (s *Server) wrap(ep rbac.Endpoint) http.Handler {
	var h http.Handler = ep.Handler
	if ep.Method != http.MethodGet && ep.Path != avatarPath {
		h = httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes)(h)
	}
	if ep.Cacheable && s.deps.Cache != nil {
		h = s.deps.Cache.Middleware(h)
	}
	return rbac.Protect(ep.Route, h, s.deps.Metrics)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests and route listings.
func (s *Server) Router() *mux.Router {
	return s.router
}

// HealthHandler serves /health, /health/live, /health/ready and /metrics
// for the separate health port.
func HealthHandler(checker *observability.HealthChecker, registry *prometheus.Registry) http.Handler {
	health := http.NewServeMux()
	observability.RegisterHealthRoutes(health, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(health, registry)
	}
	return health
}
