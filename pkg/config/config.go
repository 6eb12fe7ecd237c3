// Package config loads application configuration from environment variables
// with validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Maintenance   MaintenanceConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StorageConfig holds database and cache configuration
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis-backed role cache; empty URL disables caching
	RedisURL     string
	RoleCacheTTL time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// MaintenanceConfig holds background sweep settings
type MaintenanceConfig struct {
	// Cron schedule for the expired-link purge and legacy membership sweep
	Schedule string
	Enabled  bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("INKWELL_HOST", "0.0.0.0"),
			Port:            getEnv("INKWELL_PORT", "8080"),
			ReadTimeout:     getEnvDuration("INKWELL_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("INKWELL_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("INKWELL_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("INKWELL_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("INKWELL_HEALTH_PORT", "9090"),
		},
		Storage: StorageConfig{
			PostgresURL:      getEnv("INKWELL_POSTGRES_URL", ""),
			PostgresMaxConns: getEnvInt("INKWELL_POSTGRES_MAX_CONNS", 25),
			PostgresMinConns: getEnvInt("INKWELL_POSTGRES_MIN_CONNS", 5),
			PostgresTimeout:  getEnvDuration("INKWELL_POSTGRES_TIMEOUT", 10*time.Second),
			RedisURL:         getEnv("INKWELL_REDIS_URL", ""),
			RoleCacheTTL:     getEnvDuration("INKWELL_ROLE_CACHE_TTL", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("INKWELL_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("INKWELL_METRICS_ENABLED", true),
		},
		Maintenance: MaintenanceConfig{
			Schedule: getEnv("INKWELL_MAINTENANCE_SCHEDULE", "@hourly"),
			Enabled:  getEnvBool("INKWELL_MAINTENANCE_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks required settings and bounds
func (c *Config) Validate() error {
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("INKWELL_POSTGRES_URL is required")
	}
	if c.Storage.PostgresMaxConns < c.Storage.PostgresMinConns {
		return fmt.Errorf("postgres max conns (%d) must be >= min conns (%d)",
			c.Storage.PostgresMaxConns, c.Storage.PostgresMinConns)
	}
	if c.Storage.RoleCacheTTL < 0 {
		return fmt.Errorf("role cache TTL must not be negative")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
