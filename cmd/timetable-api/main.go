package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable generation for groups, teachers and time slots.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var (
		redisRepo *repository.ReportCacheRepository
		cacheRepo service.ReportCacheRepository
	)
	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, report cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		redisRepo = repository.NewReportCacheRepository(rdb)
		cacheRepo = redisRepo
	}

	metrics := service.NewMetricsService()
	reportCache := service.NewReportCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr)
	// Writes outlive the signal context so Close can flush them.
	reportCache.StartAsyncWrites(context.Background(), jobs.QueueConfig{Workers: 2, BufferSize: 64, MaxRetries: 2, Logger: logr})
	defer reportCache.Close()

	exporter := service.NewTimetableExportService(service.TimetableExportConfig{
		Timezone:  cfg.Scheduler.Timezone,
		TermWeeks: cfg.Scheduler.TermWeeks,
	}, nil, nil, nil, nil).WithLogger(logr)

	timetables := service.NewTimetableService(
		repository.NewTimetableRepository(db),
		db,
		reportCache,
		exporter,
		metrics,
		validator.New(),
		logr,
		service.TimetableConfig{
			ProposalTTL:     cfg.Scheduler.ProposalTTL,
			MaxPlacements:   cfg.Scheduler.MaxPlacements,
			CoreSubjects:    cfg.Scheduler.CoreSubjects,
			CoreSessions:    cfg.Scheduler.CoreSessions,
			DefaultSessions: cfg.Scheduler.DefaultSessions,
			MaxDaysPerWeek:  cfg.Scheduler.MaxDaysPerWeek,
			BalanceLoad:     cfg.Scheduler.BalanceLoad,
			PreferFiveDays:  cfg.Scheduler.PreferFiveDays,
		},
	)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisRepo != nil {
		checks["redis"] = redisRepo.Ping
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	timetableHandler := handler.NewTimetableHandler(timetables)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	planners := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))
	api.GET("/metrics/summary", admin, metricsHandler.Summary)

	if cfg.Scheduler.Enabled {
		group := api.Group("/timetables")
		group.POST("/generate", admin, timetableHandler.Generate)
		group.POST("/save", admin, timetableHandler.Save)
		group.GET("/proposals/:id", planners, timetableHandler.Proposal)
		group.GET("/proposals/:id/export", timetableHandler.Export)
		group.GET("", timetableHandler.List)
		group.GET("/:id", timetableHandler.Get)
		group.POST("/:id/publish", admin, timetableHandler.Publish)
		group.DELETE("/:id", admin, timetableHandler.Delete)
		group.POST("/cache/purge", admin, timetableHandler.PurgeCache)
	} else {
		logr.Info("timetable endpoints disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
