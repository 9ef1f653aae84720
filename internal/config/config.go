// Package config provides configuration management for SecureWatch.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/securewatch/securewatch/internal/api"
	"github.com/securewatch/securewatch/internal/broadcast"
	"github.com/securewatch/securewatch/internal/detection"
	"github.com/securewatch/securewatch/internal/intel"
	"github.com/securewatch/securewatch/internal/playbook"
	"github.com/securewatch/securewatch/internal/queue"
	"github.com/securewatch/securewatch/internal/search"
	"github.com/securewatch/securewatch/internal/store"
)

// Config holds all SecureWatch configuration.
type Config struct {
	Server      ServerConfig          `yaml:"server"`
	RateLimit   api.RateLimitConfig   `yaml:"rate_limit"`
	Database    store.PostgresConfig  `yaml:"database"`
	Queue       QueueConfig           `yaml:"queue"`
	Search      search.Config         `yaml:"search"`
	Broadcast   broadcast.Config      `yaml:"broadcast"`
	Model       detection.ModelConfig `yaml:"model"`
	ThreatIntel intel.Config          `yaml:"threat_intel"`
	Playbook    playbook.Config       `yaml:"playbook"`
	Logging     LoggingConfig         `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// QueueConfig selects the task queue backend. With UseRedis false an
// in-process queue is used and the worker must run inside the server binary.
type QueueConfig struct {
	UseRedis   bool              `yaml:"use_redis"`
	Redis      queue.RedisConfig `yaml:"redis"`
	BufferSize int               `yaml:"buffer_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		RateLimit: api.DefaultRateLimitConfig(),
		Database:  store.DefaultPostgresConfig(),
		Queue: QueueConfig{
			UseRedis:   false,
			Redis:      queue.DefaultRedisConfig(),
			BufferSize: 256,
		},
		Search:      search.DefaultConfig(),
		Broadcast:   broadcast.DefaultConfig(),
		Model:       detection.DefaultModelConfig(),
		ThreatIntel: intel.DefaultConfig(),
		Playbook:    playbook.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
