package main

import (
	"context"   // Startup checks and shutdown deadline
	"errors"    // Error matching
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"exchange_api/internal/api"     // Custom package for API handlers
	"exchange_api/internal/cache"   // Redis-backed user cache
	"exchange_api/internal/config"  // Custom package for configuration
	"exchange_api/internal/db"      // Database connection
	"exchange_api/internal/service" // User service
	"exchange_api/internal/store"   // Persistence store

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	st := store.New(gdb)

	opts := []service.Option{service.WithProfileResolver(service.NewProfileResolver(cfg.ProfileUserID))}

	// Setup Redis cache when configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		userCache := cache.NewRedis(redisClient, "exchange:")
		if err := userCache.Ping(context.Background()); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		opts = append(opts, service.WithCache(userCache, cfg.CacheTTL))
		defer redisClient.Close()
	} else {
		logrus.Warn("REDIS_ADDR not set, user cache disabled")
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := api.NewRouter(api.RouterConfig{
		Users:          service.NewUserService(st, opts...),
		DB:             st,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustedProxies: []string{"127.0.0.1"},
	})
	if err != nil {
		logrus.Fatalf("failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server forced shutdown: %v", err)
	}
}
