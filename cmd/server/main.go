package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/container"
	"github.com/zfogg/showcase/backend/internal/database"
	"github.com/zfogg/showcase/backend/internal/handlers"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"github.com/zfogg/showcase/backend/internal/middleware"
	"github.com/zfogg/showcase/backend/internal/retention"
	"github.com/zfogg/showcase/backend/internal/telemetry"
	"github.com/zfogg/showcase/backend/internal/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Showcase engagement server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver))

	if cfg.JWTSecret == "" {
		logger.Log.Warn("JWT_SECRET is empty; tokens are signed with an empty key")
	}

	tp, err := telemetry.InitTracer(telemetry.ConfigFrom(cfg))
	if err != nil {
		logger.FatalWithFields("Failed to initialize tracing", err)
	}

	metrics.Initialize()

	app, err := container.Build(cfg)
	if err != nil {
		logger.FatalWithFields("Failed to build engagement engine", err)
	}

	// Retention sweep of view and share events
	sweeper := retention.NewSweeper(app.Ledger(), cfg.Engagement.RetentionHorizon, cfg.Engagement.RetentionInterval, nil)
	sweeper.Start()

	// Live updates for watchers and post owners
	jwtSecret := []byte(cfg.JWTSecret)
	wsHub := websocket.NewHub()
	wsHub.SetRateLimitConfig(websocket.RateLimitConfig{
		MessagesPerSecond: rate.Limit(cfg.WSMessageRate),
		BurstSize:         cfg.WSMessageBurst,
	})
	wsHub.Start()
	wsHandler := websocket.NewHandler(wsHub, jwtSecret)
	wsHandler.OriginPatterns = cfg.CORSOrigins
	app.Service().Subscribe(wsHub.EngagementListener())

	h := handlers.NewHandlers(app.Service(), app.Ranker())
	h.SetWebSocketHandler(wsHandler)
	if db := app.DB(); db != nil {
		h.AddHealthCheck("database", func(ctx context.Context) error { return database.Health(ctx, db) })
	}
	if redis := app.Cache(); redis != nil {
		h.AddHealthCheck("redis", redis.Ping)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ipLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.HTTPRateLimit), cfg.HTTPRateBurst)
	defer ipLimiter.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if cfg.OTelEnabled {
		r.Use(middleware.TracingMiddleware(telemetry.ServiceName))
		r.Use(middleware.SpanEnrichmentMiddleware())
	}

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.DeviceHeader, middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Retry-After", middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	// The websocket upgrade must not be compressed by gzip
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/ws"})))
	r.Use(middleware.RateLimit(ipLimiter))

	h.RegisterRoutes(r, middleware.Auth(jwtSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Showcase engagement server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close websocket clients first so the HTTP server is not held by upgrades
	if err := wsHandler.Shutdown(ctx); err != nil {
		logger.WarnWithFields("WebSocket shutdown warning", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	sweeper.Stop()
	if err := app.Cleanup(ctx); err != nil {
		logger.WarnWithFields("Engine cleanup warning", err)
	}
	if err := telemetry.Shutdown(ctx, tp); err != nil {
		logger.WarnWithFields("Tracer shutdown warning", err)
	}

	logger.Log.Info("Server exited")
}
