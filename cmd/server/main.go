// Package main runs the live-room ad insertion coordinator: signed
// ad-server webhooks in, per-room snapshot streams out.
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

	"github.com/roomcast/adsync/config"
	"github.com/roomcast/adsync/internal/adbackend"
	"github.com/roomcast/adsync/internal/airlog"
	"github.com/roomcast/adsync/internal/middleware"
	"github.com/roomcast/adsync/internal/store"
	"github.com/roomcast/adsync/internal/stream"
	"github.com/roomcast/adsync/internal/webhook"
	"github.com/roomcast/adsync/pkg/database"
	"github.com/roomcast/adsync/pkg/redis"
	"github.com/roomcast/adsync/pkg/response"
	"github.com/roomcast/adsync/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Webhook.Secret == "" {
		logger.Warn("AD_WEBHOOK_SECRET not set; all ad-server webhooks will be refused")
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// The air log is optional reporting storage; the service runs
	// without Postgres.
	var airs *airlog.Repository
	if dsn := cfg.Database.DSN(); dsn != "" {
		pool, err := database.NewPostgresPool(ctx, dsn, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		airs = airlog.NewRepository(pool)
	} else {
		logger.Info("no database configured, air log disabled")
	}

	var creatives *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.CreativesBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CreativesBucket:      cfg.AWS.CreativesBucket,
			PrivateBucket:        cfg.AWS.CreativesPrivate,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		creatives, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("creative storage disabled", zap.Error(err))
		}
	}

	snapshots := store.NewRedisStore(rdb.Client, time.Duration(cfg.Snapshot.TTLSec)*time.Second, logger)
	guard := webhook.NewRedisGuard(rdb.Client, time.Duration(cfg.Webhook.IdempotencyTTLSec)*time.Second)
	verifier := webhook.NewVerifier(cfg.Webhook.Secret, time.Duration(cfg.Webhook.ToleranceSec)*time.Second)
	backend := adbackend.NewClient(cfg.AdBackend.BaseURL, time.Duration(cfg.AdBackend.TimeoutSec)*time.Second, logger)

	var resolver webhook.CreativeResolver
	if creatives != nil {
		resolver = creatives
	}
	webhookHandler := webhook.NewHandler(verifier, cfg.Webhook.Secret != "", guard, snapshots, backend, airs, resolver, logger)
	streamHandler := stream.NewHandler(snapshots, time.Duration(cfg.Stream.KeepAliveSec)*time.Second, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Webhooks (authenticated by HMAC signature, not JWT)
	router.POST("/webhooks/ad-events", webhookHandler.HandleEvent)

	// Viewer stream (SSE) and debug reads
	router.GET("/rooms/ad-state/stream", streamHandler.StreamRoom)
	router.GET("/debug/rooms/:roomId/ad-state", streamHandler.DebugSnapshot)
	if airs != nil {
		airlogHandler := airlog.NewHandler(airs, logger)
		router.GET("/debug/rooms/:roomId/airings", airlogHandler.ListByRoom)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// No WriteTimeout: SSE connections stay open indefinitely.
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
