package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/CodeYard/DevSession/backend/internal/api/http"
	"github.com/CodeYard/DevSession/backend/internal/api/middleware"
	"github.com/CodeYard/DevSession/backend/internal/api/ws"
	"github.com/CodeYard/DevSession/backend/internal/domain/hub"
	"github.com/CodeYard/DevSession/backend/internal/domain/session"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/tracing"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Server wires the HTTP surface, the websocket surface, and the session
// domain behind a single lifecycle.
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	registry *session.Registry
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	config   *config.Config
}

// NewServer builds the full stack from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: false,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
	}

	logger.Info("Initializing server",
		zap.String("port", cfg.Server.Port),
		zap.String("workspace", cfg.Workspace.Root),
		zap.Duration("grace_period", cfg.Session.GracePeriod),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Initialize request tracing
	tracer := tracing.New("backend", logger.Logger)

	// Event hub and session registry
	h := hub.New(logger.Named("hub"), metrics)
	registry := session.NewRegistry(cfg, h, logger.Named("session"), metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Create handlers
	handlers := apihttp.NewHandlers(registry, cfg, logger.Named("http"), metrics)
	wsHandler := ws.NewHandler(registry, logger.Named("ws"), metrics)

	// REST routes sit behind the limiter. The socket carries its own
	// backpressure and the scrape endpoint must never be throttled, so
	// both register on the bare router.
	api := router.Group("/")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.String("scope", cfg.RateLimit.Scope),
		)
		rlCfg := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Scope == "global" {
			api.Use(middleware.GlobalRateLimit(rlCfg))
		} else {
			api.Use(middleware.RateLimit(rlCfg))
		}
	}
	handlers.Routes(api)

	// WebSocket
	router.GET("/ws", wsHandler.HandleConnection)

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized")

	return &Server{
		router: router,
		httpSrv: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		config:   cfg,
	}, nil
}

// Run starts the HTTP server and blocks until the listener stops.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then reaps every session. Hijacked
// websocket connections are not drained by the HTTP shutdown; the registry
// teardown is what terminates their processes and terminals.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpSrv.Shutdown(ctx)
	s.registry.Shutdown()

	// Sync logger before exit
	s.logger.Sync()

	return err
}

// Close shuts down with a bounded grace window.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.Shutdown(ctx)
}

// Registry exposes the session registry, primarily for tests.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Router exposes the handler tree, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
