package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhima/reading-log/internal/api/handlers"
	"github.com/dhima/reading-log/internal/api/middleware"
	"github.com/dhima/reading-log/internal/api/response"
	"github.com/dhima/reading-log/internal/identity"
	"github.com/dhima/reading-log/internal/logging"
	"github.com/dhima/reading-log/internal/metrics"
	"github.com/dhima/reading-log/internal/readinglog"
	"github.com/dhima/reading-log/internal/scheduler"
	"github.com/dhima/reading-log/internal/storage"
	platformEvents "github.com/dhima/reading-log/platform/events"
	"github.com/dhima/reading-log/pkg/clock"
	"github.com/dhima/reading-log/pkg/config"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// Publisher is the event sink the server owns and closes on shutdown.
type Publisher interface {
	readinglog.EventPublisher
	Close() error
}

// Dependencies are the collaborators a Server is built from.
type Dependencies struct {
	Config    config.App
	Logger    logging.Logger
	Store     *storage.Client
	Publisher Publisher
	Metrics   *metrics.PrometheusMetrics
	Readiness *readinglog.Readiness
	Clock     clock.Clock
	Version   string
}

// Server orchestrates HTTP routing and dependencies for the API service.
type Server struct {
	config    config.App
	logger    logging.Logger
	router    *gin.Engine
	store     *storage.Client
	publisher Publisher
	metrics   *metrics.PrometheusMetrics
	readiness *readinglog.Readiness
	clock     clock.Clock
	version   string

	service *readinglog.Service
}

// Bootstrap opens the database, ensures the schema and wires a Server from
// cfg. A schema failure is fatal unless cfg tolerates it, in which case the
// server starts degraded.
func Bootstrap(ctx context.Context, cfg config.App, logger logging.Logger, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.DatabaseURL, storageOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	m := metrics.NewPrometheusMetrics()
	m.RegisterPoolStats(store.Stats)

	clk := clock.RealClock{}
	readiness := readinglog.NewReadiness(false)
	if err := store.EnsureSchema(ctx); err != nil {
		if !cfg.SchemaTolerateFailure {
			store.Close()
			return nil, err
		}
		logger.Error("schema not ready, starting degraded", zap.Error(err))
		readiness.MarkDegraded(clk.Now(), err)
	} else {
		readiness.MarkReady(clk.Now())
	}
	m.SetSchemaReady(readiness.Ready())

	var publisher Publisher = platformEvents.NopPublisher{}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher = platformEvents.NewPublisher(brokers, cfg.KafkaTopic, logger.Zap())
		logger.Info("publishing saved logs to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.KafkaTopic))
	}

	logger.Info("database ready",
		zap.String("dialect", string(store.Dialect())),
		zap.String("table", store.Table()),
		zap.Bool("schema_ready", readiness.Ready()))

	return NewServer(Dependencies{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Publisher: publisher,
		Metrics:   m,
		Readiness: readiness,
		Clock:     clk,
		Version:   version,
	}), nil
}

func storageOptions(cfg config.App) storage.Options {
	return storage.Options{
		Table:           cfg.LogTable,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		AcquireTimeout:  cfg.DBAcquireTimeout,
	}
}

// NewServer wires the API dependencies together.
func NewServer(deps Dependencies) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewPrometheusMetrics()
	}
	if deps.Readiness == nil {
		deps.Readiness = readinglog.NewReadiness(true)
	}
	if deps.Publisher == nil {
		deps.Publisher = platformEvents.NopPublisher{}
	}

	// Set Gin mode based on environment
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	s := &Server{
		config:    deps.Config,
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		readiness: deps.Readiness,
		clock:     deps.Clock,
		version:   deps.Version,
	}

	s.service = readinglog.NewService(deps.Store, deps.Logger.Zap(),
		readinglog.WithPublisher(deps.Publisher),
		readinglog.WithRecorder(deps.Metrics),
		readinglog.WithReadiness(deps.Readiness),
		readinglog.WithSkipPrivateTitles(deps.Config.SkipPrivateTitles),
	)

	s.setupRouter()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with middleware and routes.
func (s *Server) setupRouter() {
	router := gin.New()
	zapLogger := s.logger.Zap()

	// Global middleware (order matters!)
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))
	router.Use(middleware.RequestID())
	router.Use(ginzap.GinzapWithConfig(zapLogger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
		Context: func(c *gin.Context) []zap.Field {
			return []zap.Field{zap.String("request_id", response.GetRequestID(c))}
		},
	}))
	router.Use(middleware.Metrics(s.metrics))
	router.Use(cors.New(s.corsConfig()))

	router.GET("/health", handlers.NewHealthHandler(s.logger, s.store, s.readiness, s.version).Health)
	router.GET("/metrics", handlers.NewMetricsHandler(s.logger, s.metrics.Registry()).Metrics)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	provider := identity.NewRandomProvider(s.config.TokenIssuance)
	sameSite, err := middleware.ParseSameSite(s.config.TokenCookieSameSite)
	if err != nil {
		s.logger.Warn("falling back to SameSite=Lax token cookie", zap.Error(err))
		sameSite = http.SameSiteLaxMode
	}
	readingLogHandler := handlers.NewReadingLogHandler(s.logger, s.service)

	router.POST("/save",
		middleware.Token(middleware.TokenOptions{
			CookieName: s.config.TokenCookieName,
			Provider:   provider.Passthrough(),
			Logger:     zapLogger,
		}),
		readingLogHandler.SaveLog,
	)
	router.GET("/logs",
		middleware.Token(middleware.TokenOptions{
			CookieName:     s.config.TokenCookieName,
			Provider:       provider,
			Clock:          s.clock,
			Logger:         zapLogger,
			RememberCookie: s.config.TokenIssuance,
			SameSite:       sameSite,
			OnIssued:       s.metrics.TokenIssued,
		}),
		readingLogHandler.ListLogs,
	)

	s.router = router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.config.CORSOrigins) == 0 || (len(s.config.CORSOrigins) == 1 && s.config.CORSOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.config.CORSOrigins
	cfg.AllowCredentials = true
	return cfg
}

// Serve starts the HTTP server and blocks until ctx is canceled or a
// termination signal arrives, then drains requests and releases resources.
func (s *Server) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + s.config.APIPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	schedDone := s.startSchemaScheduler(ctx)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server",
			zap.String("address", addr),
			zap.String("environment", s.config.Environment),
			zap.String("log_level", s.config.LogLevel),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server gracefully...")
	case err := <-serveErr:
		runErr = fmt.Errorf("listen on %s: %w", addr, err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	<-schedDone

	s.Close()
	s.logger.Info("server stopped")
	return runErr
}

// startSchemaScheduler runs the periodic schema check when one is configured.
// The returned channel closes once the scheduler has stopped.
func (s *Server) startSchemaScheduler(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.config.SchemaCheckSchedule == "" || s.store == nil {
		close(done)
		return done
	}

	engine, err := scheduler.NewEngineWithClock(s.config.SchemaCheckSchedule, s.store, s.readiness, s.metrics, s.logger.Zap(), s.clock)
	if err != nil {
		s.logger.Error("schema check disabled", zap.Error(err))
		close(done)
		return done
	}

	go func() {
		defer close(done)
		_ = engine.Run(ctx)
	}()
	return done
}

// Close releases the publisher, the pool and flushes the logger.
func (s *Server) Close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("failed to close event publisher", zap.Error(err))
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close database connection", zap.Error(err))
		}
	}
	// stdout and stderr cannot be synced on most platforms
	_ = s.logger.Sync()
}
