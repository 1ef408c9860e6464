package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/repurpose/internal/config"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/extraction"
	"github.com/ifuryst/repurpose/internal/service/generator"
	"github.com/ifuryst/repurpose/internal/service/llm"
	"github.com/ifuryst/repurpose/internal/service/notify"
	"github.com/ifuryst/repurpose/internal/service/processor"
	"github.com/ifuryst/repurpose/internal/service/storage"
	"github.com/ifuryst/repurpose/internal/service/store"
)

// JobNotifier is told about every job the API creates
type JobNotifier interface {
	Notify(ctx context.Context, jobID uuid.UUID) error
}

// Dependencies are the components behind the HTTP surface. Engine, Reaper,
// StatsUpdater, Notifier, Redis and Objects are optional.
type Dependencies struct {
	DB           *gorm.DB
	Store        *store.Store
	Extractor    *extraction.Extractor
	Completer    llm.Completer
	Generator    *generator.Service
	Monitoring   *service.MonitoringService
	Auth         *service.AuthService
	Engine       *processor.Engine
	Reaper       *processor.Reaper
	StatsUpdater *service.StatsUpdater
	Notifier     JobNotifier
	Redis        *notify.RedisNotifier
	Objects      storage.ObjectStore
}

// BuildDependencies connects every configured backend
func BuildDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	completer, err := llm.NewCompleter(&cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	st := store.New(db)
	monitoring := service.NewMonitoringService(db, logger)
	gen := generator.NewService(completer, generator.NewDefaultRegistry(logger), generator.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     config.ParseDuration(cfg.LLM.Timeout, 60*time.Second),
	}, logger)

	deps := &Dependencies{
		DB:         db,
		Store:      st,
		Extractor:  extraction.NewExtractor(config.ParseDuration(cfg.Upload.FetchTimeout, 30*time.Second), logger),
		Completer:  completer,
		Generator:  gen,
		Monitoring: monitoring,
		Auth:       service.NewAuthService(&cfg.Auth, logger),
		Reaper:     processor.NewReaper(&cfg.Processor, st.Jobs, monitoring, logger),
		StatsUpdater: service.NewStatsUpdater(monitoring, logger,
			config.ParseDuration(cfg.Monitoring.StatsInterval, 10*time.Minute), cfg.Monitoring.RetentionDays),
	}

	if cfg.Redis.Enabled {
		redisNotifier, err := notify.NewRedisNotifier(&cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		deps.Redis = redisNotifier
		deps.Notifier = redisNotifier
	}

	if !cfg.Processor.Disabled {
		engine := processor.NewEngine(processor.NewConfig(&cfg.Processor), st, gen, monitoring, logger)
		if deps.Redis != nil {
			engine.SetWakeup(deps.Redis)
		} else {
			deps.Notifier = engine
		}
		deps.Engine = engine
	}

	if cfg.Storage.Enabled {
		objects, err := storage.NewMinioStore(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		deps.Objects = objects
	}

	return deps, nil
}

type Server struct {
	Config *config.Config
	Deps   *Dependencies
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// background components run under bgCtx until Shutdown
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

func NewServer(cfg *config.Config, deps *Dependencies, logger *zap.Logger) *Server {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	srv := &Server{
		Config:   cfg,
		Deps:     deps,
		Router:   gin.New(),
		Logger:   logger,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	s.Router.Use(otelgin.Middleware(s.Config.Tracing.ServiceName))

	s.Router.Use(cors.New(cors.Config{
		AllowOrigins:     s.Config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-TOTP-Code"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.Router.MaxMultipartMemory = s.Config.Upload.MaxFileSizeBytes()
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", s.handleHealth)
	s.Router.GET("/health/detailed", s.handleDetailedHealth)

	api := s.Router.Group("/api/v1")
	api.Use(s.Deps.Auth.UserMiddleware())
	{
		content := api.Group("/content")
		{
			content.POST("/upload", s.handleUploadContent)
			content.POST("/text", s.handleCreateTextContent)
			content.POST("/url", s.handleCreateURLContent)
			content.GET("", s.handleListContent)
			content.GET("/:id", s.handleGetContent)
			content.PUT("/:id", s.handleUpdateContent)
			content.DELETE("/:id", s.handleDeleteContent)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("", s.handleListJobs)
			jobs.GET("/:id", s.handleGetJob)
			jobs.POST("/:id/cancel", s.handleCancelJob)
			jobs.DELETE("/:id", s.handleDeleteJob)
		}

		outputs := api.Group("/outputs")
		{
			outputs.GET("", s.handleListOutputs)
			outputs.GET("/:id", s.handleGetOutput)
			outputs.GET("/:id/all", s.handleGetJobOutputs)
			outputs.PUT("/:id", s.handleUpdateOutput)
			outputs.POST("/:id/regenerate", s.handleRegenerateOutput)
		}

		analytics := api.Group("/analytics")
		{
			analytics.GET("", s.handleAnalyticsSummary)
			analytics.GET("/summary", s.handleAnalyticsSummary)
			analytics.GET("/outputs/:id", s.handleGetOutputAnalytics)
			analytics.POST("/outputs/:id", s.handleUpdateOutputAnalytics)
		}
	}

	admin := s.Router.Group("/admin")
	admin.Use(s.Deps.Auth.OperatorMiddleware())
	{
		admin.GET("/processor", s.handleProcessorStatus)
		admin.POST("/processor/start", s.handleProcessorStart)
		admin.POST("/processor/stop", s.handleProcessorStop)
		admin.GET("/errors", s.handleRecentErrors)
		admin.POST("/errors/:id/resolve", s.handleResolveError)
		admin.GET("/stats", s.handleStats)
	}
}

// StartBackground launches the job engine, lease reaper and stats updater
func (s *Server) StartBackground() {
	if s.Deps.Engine != nil {
		s.startEngine()
	}
	if s.Deps.Reaper != nil {
		s.Deps.Reaper.Start(s.bgCtx)
	}
	if s.Deps.StatsUpdater != nil {
		s.Deps.StatsUpdater.Start(s.bgCtx)
	}
}

func (s *Server) startEngine() {
	go func() {
		if err := s.Deps.Engine.Start(s.bgCtx); err != nil && !errors.Is(err, processor.ErrAlreadyRunning) {
			s.Logger.Error("Job processor exited", zap.Error(err))
		}
	}()
}

func (s *Server) Start(ctx context.Context) error {
	s.StartBackground()

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	var err error
	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		err = s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	} else {
		err = s.Server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var err error
	if s.Server != nil {
		err = s.Server.Shutdown(shutdownCtx)
	}

	// Stop background work after the HTTP server stops accepting jobs
	if s.Deps.StatsUpdater != nil {
		s.Deps.StatsUpdater.Stop()
	}
	if s.Deps.Reaper != nil {
		s.Deps.Reaper.Stop()
	}
	if s.Deps.Engine != nil {
		s.Deps.Engine.Stop()
		if waitErr := s.Deps.Engine.Wait(shutdownCtx); waitErr != nil {
			s.Logger.Warn("Job processor did not stop in time", zap.Error(waitErr))
		}
	}
	s.bgCancel()

	if s.Deps.Redis != nil {
		if closeErr := s.Deps.Redis.Close(); closeErr != nil {
			s.Logger.Warn("Failed to close redis client", zap.Error(closeErr))
		}
	}
	if sqlDB, dbErr := s.Deps.DB.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}

	return err
}
