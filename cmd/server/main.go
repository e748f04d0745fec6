// Package main runs the playback HTTP server with watch-session WebSockets and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cinestream/backend/config"
	"github.com/cinestream/backend/internal/ads"
	"github.com/cinestream/backend/internal/analytics"
	"github.com/cinestream/backend/internal/auth"
	"github.com/cinestream/backend/internal/catalog"
	"github.com/cinestream/backend/internal/metrics"
	"github.com/cinestream/backend/internal/middleware"
	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/internal/player"
	"github.com/cinestream/backend/internal/realtime"
	"github.com/cinestream/backend/internal/worker"
	"github.com/cinestream/backend/pkg/database"
	"github.com/cinestream/backend/pkg/queue"
	"github.com/cinestream/backend/pkg/redis"
	"github.com/cinestream/backend/pkg/response"
	"github.com/cinestream/backend/pkg/storage"
	"github.com/cinestream/backend/pkg/telemetry"
	"github.com/cinestream/backend/pkg/utils"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	enabled, err := telemetry.InitSentry(cfg.Telemetry.SentryDSN, "server", cfg.Telemetry.Environment, cfg.Telemetry.Release)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	if enabled {
		defer telemetry.Flush()
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.AdsBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AdsBucket:            cfg.AWS.AdsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
			CDNHost:              cfg.AWS.CDNHost,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}
	var creatives ads.CreativeStorage
	directHosts := cfg.Player.DirectHosts
	if s3Client != nil {
		creatives = s3Client
		directHosts = append(directHosts, s3Client.MediaHosts()...)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	seedAdmin(ctx, cfg.Admin, authRepo, logger)

	// Ads: shared default playlist backed by Postgres, fallback from config
	adRepo := ads.NewRepository(pool)
	inventory := ads.NewInventory(adRepo, cfg.Ads.DefaultPlaylist, logger)
	if err := inventory.Reload(ctx); err != nil {
		logger.Warn("initial ad inventory load failed, using fallback playlist", zap.Error(err))
	}
	registry := ads.NewRegistry()

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, inventory)
	if err := hub.Run(); err != nil {
		logger.Warn("event bus subscription failed, ads_updated stays local", zap.Error(err))
	}
	defer hub.Close()

	adHandler := ads.NewHandler(adRepo, creatives, inventory, hub, cfg.Ads, logger)

	// Player: URL classification and catalog lookups
	dispatcher := player.NewDispatcher(cfg.Player.EmbedMarkers, directHosts)
	catalogSource := catalog.NewCachedSource(
		catalog.NewClient(cfg.Catalog.BaseURL, time.Duration(cfg.Catalog.TimeoutSec)*time.Second),
		rdb.Client,
		time.Duration(cfg.Catalog.CacheTTLSec)*time.Second,
		logger,
	)
	playerHandler := player.NewHandler(dispatcher, catalogSource, logger)

	// Impressions
	jobQueue := queue.NewQueue(rdb.Client, logger)
	impressionRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(impressionRepo, logger)

	watch := realtime.NewWatch(realtime.WatchDeps{
		Hub:        hub,
		Registry:   registry,
		Inventory:  inventory,
		Dispatcher: dispatcher,
		Catalog:    catalogSource,
		Queue:      jobQueue,
		JWT:        jwtService,
		Ads:        cfg.Ads,
		Logger:     logger,
	})

	router := gin.New()
	router.Use(middleware.Recover(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	// Health
	router.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := pool.Ping(ctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(ctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		pending, dead, err := jobQueue.Depth(ctx)
		if err != nil {
			logger.Warn("queue depth", zap.Error(err))
		}
		response.OK(c, gin.H{
			"status":             "ok",
			"watch_sessions":     hub.Count(),
			"impressions_queued": pending,
			"impressions_dead":   dead,
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Public
	router.GET("/auth/status", authHandler.Status)
	router.POST("/admin/login", authHandler.Login)
	router.GET("/ads/config", adHandler.Config)
	router.GET("/player/classify", playerHandler.Classify)
	router.GET("/content/:id/source", playerHandler.ContentSource)

	// Admin (JWT with admin role)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/ads", adHandler.List)
		admin.POST("/ads", adHandler.Create)
		admin.GET("/ads/stats", analyticsHandler.Stats)
		admin.GET("/ads/:id", adHandler.Get)
		admin.POST("/ads/upload", adHandler.Upload)
		admin.POST("/ads/upload-url", adHandler.UploadURL)
		admin.PATCH("/ads/:id/toggle", adHandler.Toggle)
		admin.PUT("/ads/order", adHandler.Reorder)
		admin.DELETE("/ads/:id", adHandler.Delete)
	}

	// WebSocket (optional token in query; anonymous viewers get ads)
	router.GET("/ws/watch", watch.Serve)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (impression inserts), unless cmd/worker runs separately
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Worker.Inline {
		processor := worker.NewImpressionProcessor(impressionRepo, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("impression worker started inline")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	registry.StopAll()
	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// seedAdmin creates the configured admin account once.
func seedAdmin(ctx context.Context, cfg config.AdminConfig, repo *auth.Repository, logger *zap.Logger) {
	if cfg.Email == "" || cfg.Password == "" {
		return
	}
	hash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		logger.Error("hash admin password", zap.Error(err))
		return
	}
	created, err := repo.EnsureAdmin(ctx, cfg.Email, hash)
	if err != nil {
		logger.Error("seed admin", zap.Error(err))
		return
	}
	if created {
		logger.Info("admin account created", zap.String("email", cfg.Email))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
