package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backend selectors.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config holds all configuration for the taskgrid service.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"TASKGRID_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage backend: memory or redis
	Storage string `env:"TASKGRID_STORAGE" envDefault:"memory"`

	// Redis configuration
	Redis RedisConfig

	// Worker pool configuration
	Workers WorkerConfig

	// Executor retry configuration
	Executor ExecutorConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"64"`
	RunParallelism      int           `env:"WORKER_RUN_PARALLELISM" envDefault:"4"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// ExecutorConfig holds the retry/backoff policy for task execution.
type ExecutorConfig struct {
	MaxRetries     int           `env:"EXECUTOR_MAX_RETRIES" envDefault:"3"`
	BackoffBase    time.Duration `env:"EXECUTOR_BACKOFF_BASE" envDefault:"1s"`
	BackoffCap     time.Duration `env:"EXECUTOR_BACKOFF_CAP" envDefault:"30s"`
	AttemptTimeout time.Duration `env:"EXECUTOR_ATTEMPT_TIMEOUT" envDefault:"0"`

	// Simulated unit of work used when no external worker is plugged in.
	SimulatedDuration    time.Duration `env:"WORK_SIMULATED_DURATION" envDefault:"2s"`
	SimulatedFailureRate float64       `env:"WORK_SIMULATED_FAILURE_RATE" envDefault:"0.1"`
}

// TimeoutConfig holds various timeout configurations.
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Storage != StorageMemory && c.Storage != StorageRedis {
		return fmt.Errorf("invalid storage backend: %s (must be %s or %s)",
			c.Storage, StorageMemory, StorageRedis)
	}

	if c.Storage == StorageRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}
	if c.Workers.RunParallelism < 1 {
		return fmt.Errorf("run parallelism must be at least 1")
	}

	if c.Executor.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Executor.BackoffBase < 0 || c.Executor.BackoffCap < c.Executor.BackoffBase {
		return fmt.Errorf("backoff cap %s must be >= backoff base %s",
			c.Executor.BackoffCap, c.Executor.BackoffBase)
	}
	if c.Executor.SimulatedFailureRate < 0 || c.Executor.SimulatedFailureRate > 1 {
		return fmt.Errorf("simulated failure rate must be within [0, 1]")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
