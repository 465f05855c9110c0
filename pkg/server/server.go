package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/dsl"
	"mercator-hq/rulebook/pkg/ruleset"
	"mercator-hq/rulebook/pkg/runstore"
	"mercator-hq/rulebook/pkg/telemetry/health"
	"mercator-hq/rulebook/pkg/telemetry/metrics"
	"mercator-hq/rulebook/pkg/telemetry/tracing"
)

// Options contains the components the server is built from. Store is
// required; everything else is optional.
type Options struct {
	// Engine parses and evaluates rules. Nil builds one from the engine
	// section of the configuration.
	Engine *dsl.Engine

	// Dispatcher receives selected actions of executed rule sets. Nil only
	// selects actions.
	Dispatcher ruleset.Dispatcher

	// Store keeps execution reports. Every execution is saved to it.
	Store runstore.Store

	// Metrics is exposed at the configured metrics path and observes
	// executions.
	Metrics *metrics.Collector

	// Tracer traces requests and executions.
	Tracer *tracing.Tracer

	Logger *slog.Logger

	// Build information served at /version.
	Version   string
	Commit    string
	BuildTime string
}

// Server is the rulebook HTTP API server.
type Server struct {
	config   *config.Config
	opts     Options
	engine   *dsl.Engine
	executor *ruleset.Executor
	store    runstore.Store
	checker  *health.Checker
	logger   *slog.Logger
	handler  http.Handler
	tls      *tls.Config

	httpServer   *http.Server
	listener     net.Listener
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. The executor it builds saves every report to
// opts.Store.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := opts.Engine
	if engine == nil {
		engine = dsl.NewEngine(dsl.EngineConfigFrom(&cfg.Engine), logger)
		if opts.Metrics != nil {
			engine.WithCacheObserver(opts.Metrics)
		}
	}

	executor := ruleset.NewExecutor(engine, opts.Dispatcher, ruleset.ExecutorConfigFrom(&cfg.Engine), logger).
		WithSink(opts.Store)
	if opts.Metrics != nil {
		executor.WithObserver(opts.Metrics)
	}
	if opts.Tracer != nil {
		executor.WithTracer(opts.Tracer.Tracer())
	}

	tlsConfig, err := newTLSConfig(&cfg.Server.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	checker := health.New(0)
	checker.Require("store", opts.Store.Ping)

	s := &Server{
		config:       cfg,
		opts:         opts,
		engine:       engine,
		executor:     executor,
		store:        opts.Store,
		checker:      checker,
		logger:       logger,
		tls:          tlsConfig,
		shutdownChan: make(chan struct{}),
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}

	scheme := "http"
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
		scheme = "https"
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", ln.Addr().String(), "scheme", scheme)

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown gracefully shuts down the server, waiting at most the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		defer close(s.shutdownChan)

		s.mu.RLock()
		running, httpServer := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Checker returns the readiness checker, for registering more checks
// before Start.
func (s *Server) Checker() *health.Checker {
	return s.checker
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	// Recovery is outermost so panics in other middleware are caught too.
	r.Use(recoveryMiddleware(s.logger))
	r.Use(requestIDMiddleware)
	if s.opts.Tracer != nil {
		r.Use(tracing.Middleware(s.opts.Tracer))
	}
	r.Use(loggingMiddleware(s.logger))
	r.Use(corsMiddleware(&s.config.Server.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, ErrorTypeNotFound, "", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, ErrorTypeInvalidRequest, "", fmt.Sprintf("method %s not allowed", r.Method))
	})

	liveness := s.checker.LivenessHandler()
	readiness := s.checker.ReadinessHandler()
	version := health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime)
	r.Get("/healthz", liveness)
	r.Head("/healthz", liveness)
	r.Get("/readyz", readiness)
	r.Head("/readyz", readiness)
	r.Get("/version", version)

	if s.opts.Metrics != nil && s.config.Telemetry.Metrics.Enabled {
		r.Method(http.MethodGet, s.config.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.config.Server.Auth.Enabled {
			r.Use(authMiddleware(newKeyValidator(s.config.Server.Auth.Keys), s.logger))
		}
		r.Use(bodyLimitMiddleware(s.config.Server.MaxBodyBytes))
		r.Use(chimiddleware.AllowContentType("application/json"))
		if s.config.Server.WriteTimeout > 0 {
			r.Use(chimiddleware.Timeout(s.config.Server.WriteTimeout))
		}

		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/execute", s.handleExecute)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}
