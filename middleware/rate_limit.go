package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"law_ledger_app_go/logger"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
)

// RateLimitConfig defines the configuration for rate limiting
type RateLimitConfig struct {
	// Name prefixes the counter keys so limiters sharing a store stay independent
	Name string
	// Requests is the maximum number of requests allowed within the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
	// KeyFunc is a function that returns a unique key for rate limiting (defaults to IP)
	KeyFunc func(c echo.Context) string
	// Message is the error message returned when rate limit is exceeded
	Message string
	// Store holds the counters (defaults to process memory)
	Store CounterStore
}

// CounterStore counts hits per key within a fixed window
type CounterStore interface {
	// Hit increments key and returns the count within the current window
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter is a per-endpoint rate limiter
type RateLimiter struct {
	config RateLimitConfig
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c echo.Context) string {
			return c.RealIP()
		}
	}
	if config.Message == "" {
		config.Message = "Too many requests. Please try again later."
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Store == nil {
		config.Store = NewMemoryStore()
	}
	return &RateLimiter{config: config}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("ratelimit:%s:%s", rl.config.Name, rl.config.KeyFunc(c))

			count, err := rl.config.Store.Hit(c.Request().Context(), key, rl.config.Window)
			if err != nil {
				// Counters unavailable: let the request through rather than lock everyone out
				logger.WithComponent("ratelimit").WithError(err).Warn("Rate limit store failed")
				return next(c)
			}
			if count > int64(rl.config.Requests) {
				return echo.NewHTTPError(http.StatusTooManyRequests, map[string]string{"detail": rl.config.Message})
			}
			return next(c)
		}
	}
}

// rateLimitEntry tracks request count and window expiration
type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory
type MemoryStore struct {
	store map[string]*rateLimitEntry
	mu    sync.Mutex
	now   func() time.Time
}

// NewMemoryStore starts a store with a background sweeper for expired windows
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{store: make(map[string]*rateLimitEntry), now: time.Now}
	go s.cleanup()
	return s
}

// Hit implements CounterStore
func (s *MemoryStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, exists := s.store[key]
	if !exists || now.After(entry.expiresAt) {
		s.store[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}
	entry.count++
	return entry.count, nil
}

// cleanup removes expired entries every minute
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	for range ticker.C {
		s.mu.Lock()
		now := s.now()
		for key, entry := range s.store {
			if now.After(entry.expiresAt) {
				delete(s.store, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisStore shares counters between instances through Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and verifies the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Hit implements CounterStore. The window starts at the first hit of a key.
func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipeline := s.client.TxPipeline()
	incr := pipeline.Incr(ctx, key)
	ttl := pipeline.PTTL(ctx, key)
	if _, err := pipeline.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// A negative TTL means the key has no expiry yet
	if ttl.Val() < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return incr.Val(), nil
}

// Close releases the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NewLoginRateLimiter limits login attempts to 5 per minute per IP
func NewLoginRateLimiter(store CounterStore) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:     "login",
		Requests: 5,
		Window:   1 * time.Minute,
		Message:  "Too many login attempts. Please wait a minute before trying again.",
		Store:    store,
	})
}

// NewAPIRateLimiter limits general API requests to 120 per minute per IP
func NewAPIRateLimiter(store CounterStore) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:     "api",
		Requests: 120,
		Window:   1 * time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
		Store:    store,
	})
}
