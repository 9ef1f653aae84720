package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis queue settings.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	PasswordEnv  string        `yaml:"password_env"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	PoolSize     int           `yaml:"pool_size"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PasswordEnv:  "REDIS_PASSWORD",
		Key:          "securewatch:alert_jobs",
		PoolSize:     10,
		BlockTimeout: 5 * time.Second,
	}
}

// RedisQueue is a Redis list-based job queue: RPUSH on dispatch, BLPOP on
// the worker side. One popped message is handled by exactly one worker.
type RedisQueue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewRedisQueue creates the queue and verifies connectivity.
func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.Key == "" {
		return nil, errors.New("redis queue key is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: os.Getenv(cfg.PasswordEnv),
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Dispatch pushes one job onto the queue.
func (q *RedisQueue) Dispatch(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Pop blocks up to the configured window for one job.
func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	res, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var (
	_ Dispatcher = (*RedisQueue)(nil)
	_ Consumer   = (*RedisQueue)(nil)
)
