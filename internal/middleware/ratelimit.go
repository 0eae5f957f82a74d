package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

const rateLimitMessage = "Too many requests from this IP, please try again later."

// WindowStore counts hits per key in fixed windows.
type WindowStore interface {
	// Hit counts one request against key and returns the count so far in the
	// current window along with when that window ends.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type memoryWindow struct {
	count int64
	reset time.Time
}

// MemoryWindowStore keeps windows in process. Counts are per replica.
type MemoryWindowStore struct {
	mu    sync.Mutex
	items *cache.Cache
	now   func() time.Time
}

func NewMemoryWindowStore(window time.Duration) *MemoryWindowStore {
	return &MemoryWindowStore{
		items: cache.New(window, 2*window),
		now:   time.Now,
	}
}

func (s *MemoryWindowStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var w *memoryWindow
	if v, ok := s.items.Get(key); ok {
		w = v.(*memoryWindow)
	}
	if w == nil || !now.Before(w.reset) {
		w = &memoryWindow{reset: now.Add(window)}
		s.items.Set(key, w, window)
	}
	w.count++
	return w.count, w.reset, nil
}

// RedisWindowStore shares windows across replicas.
type RedisWindowStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisWindowStore(client redis.UniversalClient) *RedisWindowStore {
	return &RedisWindowStore{client: client, prefix: "livsafe:ratelimit:", now: time.Now}
}

func (s *RedisWindowStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.prefix+key)
	pipe.ExpireNX(ctx, s.prefix+key, window)
	ttl := pipe.PTTL(ctx, s.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	left := ttl.Val()
	if left <= 0 {
		left = window
	}
	return incr.Val(), s.now().Add(left), nil
}

type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	Store   WindowStore
	Metrics *metrics.Metrics
}

// RateLimit enforces a fixed window per client IP. Requests over the limit
// are rejected at once. A failing store lets traffic through.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limit := strconv.Itoa(cfg.Limit)

	return func(c *gin.Context) {
		count, reset, err := cfg.Store.Hit(c.Request.Context(), c.ClientIP(), cfg.Window)
		if err != nil {
			log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("Rate limit store unavailable")
			c.Next()
			return
		}

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		resetIn := int64(math.Ceil(time.Until(reset).Seconds()))
		if resetIn < 0 {
			resetIn = 0
		}
		c.Header("RateLimit-Limit", limit)
		c.Header("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("RateLimit-Reset", strconv.FormatInt(resetIn, 10))

		if count > int64(cfg.Limit) {
			c.Header("Retry-After", strconv.FormatInt(resetIn, 10))
			if cfg.Metrics != nil {
				cfg.Metrics.RateLimitRejected.Inc()
			}
			httputil.Fail(c, apperrors.RateLimited(rateLimitMessage))
			return
		}
		c.Next()
	}
}
