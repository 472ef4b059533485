package bootstrap

import (
	"github.com/lyzr/flowengine/common/config"
	"github.com/lyzr/flowengine/common/logger"
)

// Option configures the bootstrap process.
type Option func(*options)

type options struct {
	skipRedis     bool
	skipTelemetry bool
	useMemory     bool
	customLogger  *logger.Logger
	customConfig  *config.Config
}

// WithoutRedis skips the Redis connection, forcing the in-memory Backend
// path instead.
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
		o.useMemory = true
	}
}

// WithMemoryBackend forces the MemoryBackend even when Redis is reachable;
// used by the development entry point and by tests.
func WithMemoryBackend() Option {
	return func(o *options) {
		o.useMemory = true
	}
}

// WithoutTelemetry skips telemetry initialization.
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one.
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env.
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

func defaultOptions() *options {
	return &options{}
}
