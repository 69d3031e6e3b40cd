package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kasi-it/incident-desk/api/swagger"
	"github.com/kasi-it/incident-desk/internal/handler"
	"github.com/kasi-it/incident-desk/internal/middleware"
	"github.com/kasi-it/incident-desk/internal/mirror"
	"github.com/kasi-it/incident-desk/internal/repository"
	"github.com/kasi-it/incident-desk/internal/service"
	"github.com/kasi-it/incident-desk/pkg/cache"
	"github.com/kasi-it/incident-desk/pkg/config"
	"github.com/kasi-it/incident-desk/pkg/database"
	"github.com/kasi-it/incident-desk/pkg/export"
	"github.com/kasi-it/incident-desk/pkg/logger"
	corsmiddleware "github.com/kasi-it/incident-desk/pkg/middleware/cors"
	reqidmiddleware "github.com/kasi-it/incident-desk/pkg/middleware/requestid"
	"github.com/kasi-it/incident-desk/pkg/storage"

	"go.uber.org/zap"
)

const version = "1.0.0"

// @title Incident Desk API
// @version 1.0.0
// @description Internal incident-ticketing backend with CSV mirroring
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("record store connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logr.Sugar().Fatalw("data directory unavailable", "dir", cfg.Data.Dir, "error", err)
	}
	ticketMirror := mirror.NewTicketMirror(filepath.Join(cfg.Data.Dir, cfg.Data.TicketsFile))
	historyMirror := mirror.NewHistoryMirror(filepath.Join(cfg.Data.Dir, cfg.Data.HistoryFile))

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Sugar().Fatalw("upload area unavailable", "dir", cfg.Uploads.Dir, "error", err)
	}

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("stats cache disabled, redis unreachable", "error", err)
		} else {
			redisClient = client
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cacheRepo != nil)

	ticketRepo := repository.NewTicketRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	historyService := service.NewHistoryService(historyRepo, historyMirror, metrics, logr, nil)
	idGen := service.NewTicketIDGenerator(ticketRepo, ticketMirror, logr, nil)
	ticketService := service.NewTicketService(service.TicketServiceParams{
		Store:   ticketRepo,
		Mirror:  ticketMirror,
		IDGen:   idGen,
		History: historyService,
		Cache:   cacheService,
		Metrics: metrics,
		Uploads: uploads,
		PDF:     export.NewPDFExporter(),
		Logger:  logr,
	})
	statsService := service.NewStatsService(ticketRepo, cacheService, logr, nil)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var janitor *service.JanitorService
	if cfg.Janitor.Enabled {
		janitor = service.NewJanitorService(service.JanitorServiceParams{
			Uploads:  uploads,
			Store:    ticketRepo,
			Mirror:   ticketMirror,
			GraceAge: cfg.Janitor.GraceAge,
			Logger:   logr,
		})
		janitor.Start(rootCtx)
		go janitor.Run(rootCtx, cfg.Janitor.Interval)
		defer janitor.Stop()
	}

	ticketHandler := handler.NewTicketHandler(ticketService, historyService, uploads, cfg.Uploads.MaxFileSizeBytes, logr)
	statsHandler := handler.NewStatsHandler(statsService)
	healthHandler := handler.NewHealthHandler(db, redisClient, version)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.Static("/uploads", uploads.Dir())

	api := r.Group(cfg.APIPrefix)
	{
		tickets := api.Group("/tickets")
		tickets.POST("", ticketHandler.Create)
		tickets.GET("", ticketHandler.List)
		tickets.GET("/stats", statsHandler.Stats)
		tickets.GET("/export/all", ticketHandler.ExportAll)
		tickets.GET("/:id", ticketHandler.Get)
		tickets.PUT("/:id", ticketHandler.Update)
		tickets.DELETE("/:id", ticketHandler.Delete)
		tickets.GET("/:id/history", ticketHandler.History)
		tickets.GET("/:id/download", ticketHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
