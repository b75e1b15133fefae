package main

import (
	"context"                          // Redis ping and shutdown
	"errors"                           // Server close detection
	"net/http"                         // HTTP server
	"os"                               // Signals
	"os/signal"                        // Signal handling
	"payment_gateway/internal/api"     // Custom package for API handlers
	"payment_gateway/internal/cards"   // Card registry
	"payment_gateway/internal/config"  // Custom package for configuration
	"payment_gateway/internal/db"      // Database connection
	"payment_gateway/internal/export"  // Export service
	"payment_gateway/internal/gateway" // Gateway simulator
	"payment_gateway/internal/jobs"    // Scheduled reports
	"payment_gateway/internal/ledger"  // Transaction ledger
	"payment_gateway/internal/notify"  // Webhook notifier
	"payment_gateway/internal/stats"   // Statistics engine
	"payment_gateway/internal/utils"   // Cache and locks
	"syscall"                          // SIGTERM
	"time"                             // Timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// lockTTL bounds how long a crashed process can hold a transaction lock
const lockTTL = 30 * time.Second

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode) // Set Mode to Release if in production
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	// Connect to the database and bring the schema up to date
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}

	// Redis is optional: without it the cache is a no-op and locks are in-process
	var (
		redisClient *redis.Client
		locker      utils.Locker = utils.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		locker = utils.NewRedisLocker(redisClient, lockTTL)
	}

	// Core services
	reg := cards.NewRegistry(gdb, utils.NewCache(redisClient))
	led := ledger.New(gdb, reg)
	opts := []gateway.Option{gateway.WithDelay(cfg.GatewayDelay)}
	if cfg.WebhookURL != "" {
		opts = append(opts, gateway.WithNotifier(notify.NewWebhook(cfg.WebhookURL, 5*time.Second)))
	}
	sim := gateway.New(led, reg, locker, opts...)
	engine := stats.NewEngine(led)

	// Daily summary report
	scheduler := jobs.NewScheduler()
	if cfg.SummaryCron != "" {
		if err := scheduler.AddDailySummary(cfg.SummaryCron, engine); err != nil {
			logrus.Fatalf("failed to schedule daily summary: %v", err)
		}
	}
	scheduler.Start()

	r := api.NewRouter(api.Deps{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Cards:     reg,
		Ledger:    led,
		Gateway:   sim,
		Stats:     engine,
		Export:    export.NewService(led),
	})
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":   cfg.AppPort,
			"driver": gdb.Dialector.Name(),
			"redis":  redisClient != nil,
		}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	// Wait for a shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
	}
	<-scheduler.Stop().Done()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
