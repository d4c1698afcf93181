// Package ratelimit provides per-caller request limiting for the chat API.
// With Redis configured the window counters are shared across instances;
// without it a local token bucket applies per process. Redis errors fail
// open: a broken cache must not take the chat surface down with it.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/metrics"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
}

type Limiter struct {
	rdb        *redis.Client
	buckets    map[string]*bucket
	mu         sync.RWMutex
	maxTokens  int
	window     time.Duration
	refillRate time.Duration
	logger     *zap.Logger

	cleanupTicker *time.Ticker
}

type Config struct {
	MaxRequestsPerMinute int
	WindowDuration       time.Duration
	Redis                *redis.Client
	Logger               *zap.Logger
}

func New(cfg Config) *Limiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = time.Minute
	}

	l := &Limiter{
		rdb:           cfg.Redis,
		buckets:       make(map[string]*bucket),
		maxTokens:     cfg.MaxRequestsPerMinute,
		window:        cfg.WindowDuration,
		refillRate:    cfg.WindowDuration / time.Duration(cfg.MaxRequestsPerMinute),
		logger:        cfg.Logger,
		cleanupTicker: time.NewTicker(5 * time.Minute),
	}

	go l.cleanup()

	return l
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()

		userID := c.Get("X-User-ID")
		if userID != "" {
			key = userID
		}

		if !l.allow(c, key) {
			metrics.RateLimitRejections.Inc()
			l.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func (l *Limiter) allow(c *fiber.Ctx, key string) bool {
	if l.rdb != nil {
		return l.allowRedis(c, key)
	}
	return l.allowLocal(key)
}

// allowRedis counts requests in fixed windows keyed by caller and window
// start. INCR creates the counter atomically; the expiry outlives the window
// by a bit so a slow clock never loses a key early.
func (l *Limiter) allowRedis(c *fiber.Ctx, key string) bool {
	windowStart := time.Now().Unix() / int64(l.window.Seconds())
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	count, err := l.rdb.Incr(c.Context(), counterKey).Result()
	if err != nil {
		l.logger.Warn("Rate limit counter unavailable, allowing request", zap.Error(err))
		return true
	}
	if count == 1 {
		l.rdb.Expire(c.Context(), counterKey, l.window+10*time.Second)
	}

	return count <= int64(l.maxTokens)
}

func (l *Limiter) allowLocal(key string) bool {
	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		b, exists = l.buckets[key]
		if !exists {
			b = &bucket{
				tokens:     l.maxTokens,
				lastRefill: time.Now(),
			}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	tokensToAdd := int(elapsed / l.refillRate)

	if tokensToAdd > 0 {
		b.tokens = min(l.maxTokens, b.tokens+tokensToAdd)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

func (l *Limiter) cleanup() {
	for range l.cleanupTicker.C {
		l.mu.Lock()
		now := time.Now()
		for key, b := range l.buckets {
			b.mu.Lock()
			if now.Sub(b.lastRefill) > 10*time.Minute {
				delete(l.buckets, key)
			}
			b.mu.Unlock()
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) Stop() {
	l.cleanupTicker.Stop()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
