package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig bounds request volume per client on the public endpoints.
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Addr              string `yaml:"addr"`
	Password          string `yaml:"password"`
	DB                int    `yaml:"db"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	IncludeHeaders    bool   `yaml:"include_headers"`
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Addr:              "localhost:6379",
		RequestsPerMinute: 120,
		IncludeHeaders:    true,
	}
}

// RateLimiter enforces a fixed per-minute window per client address, counted
// in Redis so the limit holds across server replicas. When Redis is
// unreachable requests are allowed through.
type RateLimiter struct {
	redis  *redis.Client
	cfg    RateLimitConfig
	logger *zap.Logger
}

// NewRateLimiter creates a rate limiter backed by the given Redis client.
func NewRateLimiter(client *redis.Client, cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	return &RateLimiter{
		redis:  client,
		cfg:    cfg,
		logger: logger,
	}
}

// windowScript bumps the window counter and sets its expiry atomically.
var windowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// Middleware returns the HTTP middleware enforcing the limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := fmt.Sprintf("securewatch:ratelimit:%s:minute", clientAddr(r))

		count, err := windowScript.Run(ctx, rl.redis, []string{key}, 60000).Int()
		if err != nil {
			rl.logger.Warn("Rate limit check failed, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.cfg.RequestsPerMinute - count
		if remaining < 0 {
			remaining = 0
		}

		if rl.cfg.IncludeHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		if count > rl.cfg.RequestsPerMinute {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			if ttl <= 0 {
				ttl = time.Minute
			}
			retryAfter := int(ttl.Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"rate_limit_exceeded","retry_after":%d}`, retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
