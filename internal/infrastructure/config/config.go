package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Coordination backends.
const (
	BackendZooKeeper = "zookeeper"
	BackendMemory    = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Coordination CoordinationConfig
	Catalog      CatalogConfig
	Logging      LogConfig
	RateLimit    RateLimitConfig
	Breaker      BreakerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// CoordinationConfig selects and configures the coordination service.
type CoordinationConfig struct {
	Backend          string        `envconfig:"COORD_BACKEND" default:"zookeeper"`
	Servers          []string      `envconfig:"ZK_SERVERS" default:"127.0.0.1:2181"`
	SessionTimeout   time.Duration `envconfig:"ZK_SESSION_TIMEOUT" default:"10s"`
	OperationTimeout time.Duration `envconfig:"ZK_OP_TIMEOUT" default:"5s"`
	RepositoryPath   string        `envconfig:"REPOSITORY_PATH" default:"/package/repositories"`
	RetryInterval    time.Duration `envconfig:"MIRROR_RETRY_INTERVAL" default:"5s"`
}

// CatalogConfig holds the repository written on first use.
type CatalogConfig struct {
	DefaultName string `envconfig:"UNIVERSE_NAME" default:"Universe"`
	DefaultURI  string `envconfig:"UNIVERSE_URI" default:"https://universe.mesosphere.com/repo"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// BreakerConfig tunes the circuit breaker in front of the coordination service.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	Timeout             time.Duration `envconfig:"BREAKER_TIMEOUT" default:"10s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.Coordination.Backend {
	case BackendZooKeeper:
		if len(c.Coordination.Servers) == 0 {
			return fmt.Errorf("invalid config: ZK_SERVERS is empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid config: unknown COORD_BACKEND %q", c.Coordination.Backend)
	}
	if len(c.Coordination.RepositoryPath) == 0 || c.Coordination.RepositoryPath[0] != '/' {
		return fmt.Errorf("invalid config: REPOSITORY_PATH must be absolute, got %q", c.Coordination.RepositoryPath)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Coordination: CoordinationConfig{
			Backend:          BackendZooKeeper,
			Servers:          []string{"127.0.0.1:2181"},
			SessionTimeout:   10 * time.Second,
			OperationTimeout: 5 * time.Second,
			RepositoryPath:   "/package/repositories",
			RetryInterval:    5 * time.Second,
		},
		Catalog: CatalogConfig{
			DefaultName: "Universe",
			DefaultURI:  "https://universe.mesosphere.com/repo",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			Timeout:             10 * time.Second,
		},
	}
}
