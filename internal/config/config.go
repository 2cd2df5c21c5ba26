package config

import (
	"time"

	"github.com/postly/postly/internal/ailink"
)

// Config represents the complete application configuration.
// Values resolve in order: built-in defaults, config file, POSTLY_* environment.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Image     ImageConfig     `mapstructure:"image"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	AILink    ailink.Config   `mapstructure:"ailink"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TrustProxyHeaders keys clients on X-Real-IP / X-Forwarded-For. Enable
	// only behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only (CLI)
// - STRUCTURED: JSON output with correlation IDs (serve)
type LoggingConfig struct {
	// Valid values: trace, debug, info, warn, error
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port. /metrics on the main
	// server proxies to it.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// QuotaConfig sets the per-client daily ceilings. A ceiling of zero or less
// disables the gate for that class.
type QuotaConfig struct {
	AnalyzeDailyLimit int `mapstructure:"analyze_daily_limit"`
	ImproveDailyLimit int `mapstructure:"improve_daily_limit"`

	// Timezone is the IANA zone whose calendar day bounds the counters.
	// Empty means the server's local zone.
	Timezone string `mapstructure:"timezone"`
}

// ImageConfig controls how uploads are resized before they reach the model.
type ImageConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
	JPEGQuality  int `mapstructure:"jpeg_quality"`
	// MaxPixels is the largest width*height decoded for resizing.
	MaxPixels int `mapstructure:"max_pixels"`
}

// UploadConfig controls scratch storage for multipart uploads.
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`

	// Dir holds scratch files. Empty means os.TempDir().
	Dir string `mapstructure:"dir"`
}

// RateLimitConfig configures the per-client burst limiter on generation routes.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

// CORSConfig configures cross-origin access for browser and mobile clients.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}
