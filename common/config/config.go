package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service   ServiceConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Dispatch  DispatchConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings.
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
	LogFormat   string
}

// RedisConfig holds the Backend's Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// CacheConfig holds the Backend cache's default TTL.
type CacheConfig struct {
	DefaultTTL time.Duration
}

// DispatchConfig sizes the Pool Dispatcher's thread/process pools and
// locates the process-pool worker binary. The process pool runs a single
// worker subprocess; ProcessPoolSize is validated but does not change that.
type DispatchConfig struct {
	ThreadPoolSize    int
	ProcessPoolSize   int
	ProcessWorkerPath string
	ShutdownGrace     time.Duration
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables with sensible
// defaults for local development.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		Cache: CacheConfig{
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Dispatch: DispatchConfig{
			ThreadPoolSize:    getEnvInt("DISPATCH_THREAD_POOL_SIZE", 16),
			ProcessPoolSize:   getEnvInt("DISPATCH_PROCESS_POOL_SIZE", 4),
			ProcessWorkerPath: getEnv("DISPATCH_PROCESS_WORKER_PATH", ""),
			ShutdownGrace:     getEnvDuration("DISPATCH_SHUTDOWN_GRACE", 30*time.Second),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration is usable before any component starts.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Dispatch.ThreadPoolSize < 1 {
		return fmt.Errorf("dispatch thread pool size must be >= 1")
	}
	if c.Dispatch.ProcessPoolSize < 1 {
		return fmt.Errorf("dispatch process pool size must be >= 1")
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
