// Package api ctb HTTP API
//
//	@title			ctb API
//	@version		1.0
//	@description	Authentication and stock market endpoints of the ctb server.
//
// @BasePath	/
// @securityDefinitions.apikey	ApiKeyAuth
// @in							header
// @name						Authorization
// @description				Bearer token returned by login or register
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ctb/config"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// SwaggerPrefix serves the API documentation UI when enabled.
const SwaggerPrefix = "/swagger/"

// corsMaxAge is how long browsers may cache a preflight answer.
const corsMaxAge = 10 * time.Minute

// API holds the composed HTTP handler of the server: the mounted route tree
// wrapped by the middleware chain.
type API struct {
	router      *mux.Router
	handler     http.Handler
	root        *Group
	rateLimiter *RateLimiter
	config      *config.Config
	logger      *zap.SugaredLogger
}

// NewAPI mounts root onto a fresh router and wraps it with the middleware
// chain, outermost first: recovery, request ID, access log, CORS, rate limit,
// application context. The index route is never rate limited.
//
// The chain wraps the router rather than being registered with Router.Use so
// unmatched routes and preflight requests pass through it too.
func NewAPI(root *Group, cfg *config.Config, app Application, logger *zap.SugaredLogger) (*API, error) {
	if root == nil {
		return nil, errors.New("route tree is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	a := &API{
		router: mux.NewRouter(),
		root:   root,
		config: cfg,
		logger: logger,
	}
	a.router.NotFoundHandler = http.HandlerFunc(a.notFound)
	a.router.MethodNotAllowedHandler = http.HandlerFunc(a.methodNotAllowed)

	if err := root.Mount(a.router); err != nil {
		return nil, fmt.Errorf("failed to mount routes: %w", err)
	}
	if cfg.Metrics.Enabled {
		a.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	}
	if cfg.API.SwaggerEnabled {
		a.router.PathPrefix(SwaggerPrefix).Handler(httpSwagger.WrapHandler).Methods(http.MethodGet).Name("swagger")
	}

	var handler http.Handler = a.router
	if app != nil {
		handler = ApplicationMiddleware(app)(handler)
	}
	if cfg.API.RateLimit.RequestsPerSecond > 0 {
		a.rateLimiter = NewRateLimiter(cfg.API.RateLimit.RequestsPerSecond, cfg.API.RateLimit.Burst,
			cfg.API.TrustProxy, cfg.API.TrustedProxies, time.Hour, logger)
		a.rateLimiter.Exempt(IndexPath)
		handler = a.rateLimiter.Middleware(handler)
	}
	handler = CORSMiddleware(cfg.API.AllowedOrigins, corsMaxAge, logger)(handler)
	handler = AccessLogMiddleware(a.router, logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(a.router, logger)(handler)
	a.handler = handler

	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Router returns the underlying router, mainly for route inspection.
func (a *API) Router() *mux.Router {
	return a.router
}

// Routes lists the mounted route tree.
func (a *API) Routes() []RouteInfo {
	return a.root.Routes()
}

// Close releases background resources. Safe to call more than once.
func (a *API) Close() {
	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}
}

func (a *API) notFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, "Resource not found", nil, a.logger)
}

func (a *API) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil, a.logger)
}
