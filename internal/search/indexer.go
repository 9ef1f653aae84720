// Package search is the fire-and-forget search-index sink. Events are written
// as JSON documents to a Redis-backed index; failures are logged by the
// caller and never surfaced to the ingestion client.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/securewatch/securewatch/internal/models"
)

// Indexer accepts event documents for search indexing.
type Indexer interface {
	Index(ctx context.Context, ev *models.EventRecord) error
	Close() error
}

// Config holds index sink settings.
type Config struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"key_prefix"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		PasswordEnv: "REDIS_PASSWORD",
		KeyPrefix:   "securewatch:logs",
		Timeout:     2 * time.Second,
	}
}

// document is the indexed shape of an event.
type document struct {
	Timestamp     string `json:"timestamp"`
	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip"`
	LogType       string `json:"log_type"`
	RawLog        string `json:"raw_log"`
	Message       string `json:"message"`
	Severity      string `json:"severity"`
}

// RedisIndexer writes event documents keyed by event id, with a time-ordered
// index set for range scans.
type RedisIndexer struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// NewRedisIndexer creates the indexer and verifies connectivity.
func NewRedisIndexer(ctx context.Context, cfg Config) (*RedisIndexer, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "securewatch:logs"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: os.Getenv(cfg.PasswordEnv),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis index: %w", err)
	}

	return &RedisIndexer{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		timeout:   cfg.Timeout,
	}, nil
}

// Index writes one event document. Bounded by the configured timeout.
func (r *RedisIndexer) Index(ctx context.Context, ev *models.EventRecord) error {
	doc := document{
		Timestamp:     ev.Timestamp.UTC().Format(time.RFC3339),
		SourceIP:      ev.SourceIP,
		DestinationIP: ev.DestinationIP,
		LogType:       ev.LogType,
		RawLog:        ev.RawLog,
		Message:       ev.Message,
		Severity:      string(ev.Severity),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.keyPrefix+":doc:"+ev.ID, payload, 0)
	pipe.ZAdd(ctx, r.keyPrefix+":by_time", redis.Z{
		Score:  float64(ev.Timestamp.UnixMilli()),
		Member: ev.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisIndexer) Close() error {
	return r.client.Close()
}

// NopIndexer discards documents; used when the sink is disabled.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, *models.EventRecord) error { return nil }
func (NopIndexer) Close() error                                     { return nil }

var (
	_ Indexer = (*RedisIndexer)(nil)
	_ Indexer = NopIndexer{}
)
