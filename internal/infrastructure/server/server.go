package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/pkgplane/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/domain/render"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/domain/repository"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/coordination"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/mirror"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	backend coordination.WatchingClient
	closer  func()
	mirror  *mirror.Mirror
	store   *repository.Store
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing package server",
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Coordination.Backend),
		zap.String("repository_path", cfg.Coordination.RepositoryPath),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetricsWithRegistry(registry, registry)

	tracer := tracing.New("pkgplane", logger.Named("trace").Logger)

	backend, closer, err := newBackend(cfg, logger, metrics, tracer)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	m := mirror.New(backend, cfg.Coordination.RepositoryPath, mirror.Config{
		RetryInterval: cfg.Coordination.RetryInterval,
	}, logger.Named("mirror").Logger, metrics)

	store := repository.NewStore(backend, m, repository.Config{
		Path: cfg.Coordination.RepositoryPath,
		Default: types.PackageRepository{
			Name: cfg.Catalog.DefaultName,
			URI:  cfg.Catalog.DefaultURI,
		},
	}, logger.Named("catalog").Logger, metrics)

	renderer := render.NewRenderer(logger.Named("render").Logger, metrics)

	handlers := apihttp.NewHandlers(store, renderer, apihttp.Options{
		Readiness: m,
		Metrics:   metrics,
		Logger:    logger.Named("http").Logger,
		Timeout:   cfg.Coordination.OperationTimeout,
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.AccessLog(logger.Named("access").Logger))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	pkg := router.Group("/package")
	pkg.POST("/repository/list", handlers.ListRepositories)
	pkg.POST("/repository/add", handlers.AddRepository)
	pkg.POST("/repository/delete", handlers.DeleteRepository)
	pkg.POST("/render", handlers.RenderPackage)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		backend: backend,
		closer:  closer,
		mirror:  m,
		store:   store,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

func newBackend(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer) (coordination.WatchingClient, func(), error) {
	switch cfg.Coordination.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory coordination backend; catalog changes are not persisted")
		return coordination.NewMemory(), func() {}, nil

	case config.BackendZooKeeper:
		zkc, err := coordination.DialZooKeeper(coordination.ZooKeeperConfig{
			Servers:        cfg.Coordination.Servers,
			SessionTimeout: cfg.Coordination.SessionTimeout,
			Breaker: resilience.Settings{
				ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
				Timeout:             cfg.Breaker.Timeout,
			},
		}, coordination.Options{
			Logger:   logger.Named("zookeeper").Logger,
			Metrics:  metrics,
			Tracer:   tracer,
			ZKLogger: logger.Named("zk"),
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connecting to ZooKeeper", zap.Strings("servers", cfg.Coordination.Servers))
		return zkc, zkc.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown coordination backend %q", cfg.Coordination.Backend)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the catalog mirror and serves HTTP until ctx is cancelled or
// the listener fails. Shutdown is graceful.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mirrorDone := make(chan struct{})
	go func() {
		defer close(mirrorDone)
		s.mirror.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("failed to shut down http server: %w", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	cancel()
	<-mirrorDone
	return runErr
}

// Close releases the coordination session and flushes telemetry.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.closer()
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return nil
}
