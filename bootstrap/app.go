package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"ctb/api"
	"ctb/config"
	"ctb/metrics"

	"go.uber.org/zap"
)

// DatabaseProvider is initialized before anything else and closed with the server.
type DatabaseProvider interface {
	Initialize(ctx context.Context) error
	Close() error
}

// Validator is the shared request validator, initialized after the database.
type Validator interface {
	Initialize() error
}

// RouteGroupProvider contributes one route group under /api/v1.
type RouteGroupProvider interface {
	RouteGroup() *api.Group
}

// Dependencies are the collaborators NewServer initializes and wires.
type Dependencies struct {
	Database    DatabaseProvider
	Validator   Validator
	RouteGroups []RouteGroupProvider // mounted under /api/v1 in order
	Logger      *zap.SugaredLogger
}

const (
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Server is one fully wired application instance.
type Server struct {
	name   string
	config *config.Config
	deps   Dependencies
	root   *api.Group
	api    *api.API
	logger *zap.SugaredLogger

	closeOnce sync.Once
	closeErr  error
}

// NewServer initializes the database, then the validator, then builds the
// route tree and the HTTP handler. A failing database skips the validator;
// any failure returns no server and releases what was initialized.
func NewServer(ctx context.Context, cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Database == nil {
		return nil, errors.New("database provider is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("validator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Infow("Bootstrapping server", "app", cfg.App.Name)

	logger.Info("Phase 1: Initializing database...")
	if err := deps.Database.Initialize(ctx); err != nil {
		metrics.BootstrapSteps.WithLabelValues("database", "failure").Inc()
		logger.Errorw("Database initialization failed", "error", err)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	metrics.BootstrapSteps.WithLabelValues("database", "success").Inc()

	logger.Info("Phase 2: Initializing validator...")
	if err := deps.Validator.Initialize(); err != nil {
		metrics.BootstrapSteps.WithLabelValues("validator", "failure").Inc()
		logger.Errorw("Validator initialization failed", "error", err)
		closeDatabase(deps.Database, logger)
		return nil, fmt.Errorf("failed to initialize validator: %w", err)
	}
	metrics.BootstrapSteps.WithLabelValues("validator", "success").Inc()

	s := &Server{
		name:   cfg.App.Name,
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	logger.Info("Phase 3: Assembling routes...")
	root, err := buildRouteTree(deps.RouteGroups)
	if err != nil {
		metrics.BootstrapSteps.WithLabelValues("routes", "failure").Inc()
		closeDatabase(deps.Database, logger)
		return nil, fmt.Errorf("failed to assemble routes: %w", err)
	}
	s.root = root

	handler, err := api.NewAPI(root, cfg, s, logger)
	if err != nil {
		metrics.BootstrapSteps.WithLabelValues("routes", "failure").Inc()
		closeDatabase(deps.Database, logger)
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}
	metrics.BootstrapSteps.WithLabelValues("routes", "success").Inc()
	s.api = handler

	for _, route := range s.api.Routes() {
		logger.Debugw("Route mounted", "name", route.Name, "path", route.Path, "methods", route.Methods)
	}
	logger.Infow("Server ready",
		"app", s.name,
		"routes", len(s.api.Routes()),
		"allowed_origins", cfg.API.AllowedOrigins)

	return s, nil
}

// buildRouteTree assembles / -> /api -> /v1 -> groups.
func buildRouteTree(providers []RouteGroupProvider) (*api.Group, error) {
	root := api.NewGroup("root", "")
	if err := root.HandleFunc("index", api.IndexPath, api.HelloWorld, http.MethodGet, http.MethodHead); err != nil {
		return nil, err
	}

	apiGroup := api.NewGroup("api", "/api")
	v1 := api.NewGroup("v1", "/v1")

	for i, provider := range providers {
		if provider == nil {
			return nil, fmt.Errorf("route group provider %d is nil", i)
		}
		group := provider.RouteGroup()
		if group == nil {
			return nil, fmt.Errorf("route group provider %d returned no group", i)
		}
		if err := v1.Register(group); err != nil {
			return nil, err
		}
	}

	if err := apiGroup.Register(v1); err != nil {
		return nil, err
	}
	if err := root.Register(apiGroup); err != nil {
		return nil, err
	}
	return root, nil
}

func closeDatabase(db DatabaseProvider, logger *zap.SugaredLogger) {
	if err := db.Close(); err != nil {
		logger.Warnw("Failed to close database", "error", err)
	}
}

// Name returns the application name.
func (s *Server) Name() string { return s.name }

// Logger returns the server logger.
func (s *Server) Logger() *zap.SugaredLogger { return s.logger }

// Handler returns the composed HTTP handler.
func (s *Server) Handler() http.Handler { return s.api }

// Routes lists the mounted route tree.
func (s *Server) Routes() []api.RouteInfo { return s.api.Routes() }

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.API.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.API.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Shutdown waits for in-flight
// requests up to api.shutdown_timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.api,
		ReadTimeout:       s.config.API.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      s.config.API.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger.Desugar()),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("API server started", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Stopping API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.API.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorw("Failed to stop API server", "error", err)
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}

// Close releases the server's collaborators. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down...")
		s.api.Close()
		s.logger.Info("Closing database connections...")
		if err := s.deps.Database.Close(); err != nil {
			s.logger.Errorw("Failed to close database", "error", err)
			s.closeErr = fmt.Errorf("failed to close database: %w", err)
		}
		s.logger.Info("Shutdown complete")
	})
	return s.closeErr
}
