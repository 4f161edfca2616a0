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

	"github.com/Baaaki/taskvault/internal/broker"
	"github.com/Baaaki/taskvault/internal/config"
	"github.com/Baaaki/taskvault/internal/database"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/internal/repository"
	"github.com/Baaaki/taskvault/internal/server"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/internal/utils"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis is optional: without it events are disabled and limits are per process
	var redisClient *redis.Client
	var eventBroker broker.TaskEventBroker = broker.NewNopBroker()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = broker.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		eventBroker = broker.NewRedisTaskBroker(redisClient)
		logger.Log.Info("Redis connected, task events enabled")
	}
	defer eventBroker.Close()

	limiterConfig := middleware.RateLimiterConfig{
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      cfg.RateLimitWindow,
	}
	var limiter middleware.Limiter
	switch {
	case cfg.RateLimitBackend == "redis" && redisClient != nil:
		limiter = middleware.NewRedisLimiter(redisClient, limiterConfig)
	case cfg.RateLimitBackend == "redis":
		logger.Log.Warn("RATE_LIMIT_BACKEND=redis without REDIS_URL, using in-memory limiter")
		limiter = middleware.NewMemoryLimiter(limiterConfig)
	default:
		limiter = middleware.NewMemoryLimiter(limiterConfig)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		utils.NewArgon2Hasher(utils.DefaultArgon2Params),
		utils.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry),
	)
	taskService := service.NewTaskService(taskRepo, eventBroker)

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		DB:          db,
		AuthService: authService,
		TaskService: taskService,
		Broker:      eventBroker,
		Limiter:     limiter,
	})

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
			zap.String("rate_limit_backend", cfg.RateLimitBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Error during shutdown", zap.Error(err))
	}
	logger.Log.Info("Server gracefully stopped")
}
