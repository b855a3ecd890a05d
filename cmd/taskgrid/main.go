package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskgrid/taskgrid/internal/application/engine"
	"github.com/taskgrid/taskgrid/internal/application/workers"
	"github.com/taskgrid/taskgrid/internal/config"
	eventsmemory "github.com/taskgrid/taskgrid/pkg/adapters/events/memory"
	eventsredis "github.com/taskgrid/taskgrid/pkg/adapters/events/redis"
	"github.com/taskgrid/taskgrid/pkg/adapters/metrics/prometheus"
	storagememory "github.com/taskgrid/taskgrid/pkg/adapters/storage/memory"
	storageredis "github.com/taskgrid/taskgrid/pkg/adapters/storage/redis"
	"github.com/taskgrid/taskgrid/pkg/adapters/work"
	"github.com/taskgrid/taskgrid/pkg/api/http"
	"github.com/taskgrid/taskgrid/pkg/api/websocket"
	"github.com/taskgrid/taskgrid/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting taskgrid",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage", cfg.Storage))

	// Initialize storage and event bus adapters
	var (
		repo        ports.TaskRepository
		records     ports.RecordStore
		eventBus    ports.EventBus
		redisClient *goredis.Client
	)

	switch cfg.Storage {
	case config.StorageRedis:
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		store := storageredis.NewStore(redisClient, logger)
		repo = store
		records = store
		eventBus = eventsredis.NewStreamsBus(
			redisClient,
			"taskgrid-workers",
			fmt.Sprintf("taskgrid-%d", os.Getpid()),
			logger,
		)

	default:
		store := storagememory.NewStore()
		repo = store
		records = store
		eventBus = eventsmemory.NewBus()
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize application components
	executor := engine.NewExecutor(
		repo,
		records,
		eventBus,
		metricsCollector,
		logger,
		engine.RetryPolicy{
			MaxRetries:     cfg.Executor.MaxRetries,
			BackoffBase:    cfg.Executor.BackoffBase,
			BackoffCap:     cfg.Executor.BackoffCap,
			AttemptTimeout: cfg.Executor.AttemptTimeout,
		},
	)

	runner := engine.NewRunner(
		repo,
		executor,
		metricsCollector,
		logger,
		cfg.Workers.RunParallelism,
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		runner,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	workUnit := work.NewSimulated(work.SimulatedConfig{
		Duration:    cfg.Executor.SimulatedDuration,
		FailureRate: cfg.Executor.SimulatedFailureRate,
		Logger:      logger,
	})

	// Initialize HTTP API server
	httpServer := http.NewServer(&http.Config{
		Port:       cfg.HTTPPort,
		Repository: repo,
		Records:    records,
		Executor:   executor,
		Pool:       workerPool,
		Work:       workUnit,
		Logger:     logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("taskgrid started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.Int("run_parallelism", cfg.Workers.RunParallelism))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("taskgrid shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
