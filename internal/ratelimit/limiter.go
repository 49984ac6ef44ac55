// Package ratelimit bounds how often an operator can trigger deliveries
// against the same registration.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter admits at most limit calls per second for a key. A limit <= 0
// disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) bool
}

// slidingWindowScript trims the window, counts what is left and admits the
// call when under the limit. ARGV: now ms, window ms, limit, member.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
end
return 0
`)

// RedisLimiter is a sliding-window limiter shared by every server instance.
type RedisLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	window      time.Duration
}

func NewRedisLimiter(redisClient *redis.Client, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		redisClient: redisClient,
		logger:      logger,
		window:      time.Second,
	}
}

func rlKey(key string) string {
	return fmt.Sprintf("webhook:rl:%s", key)
}

// Allow fails open when Redis is unavailable.
func (rl *RedisLimiter) Allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	result, err := slidingWindowScript.Run(ctx, rl.redisClient, []string{rlKey(key)},
		now, rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "key", key)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "key", key, "limit", limit)
		return false
	}
	return true
}

// DefaultLocalKeys bounds the number of buckets a LocalLimiter keeps.
const DefaultLocalKeys = 10000

type bucket struct {
	limiter *rate.Limiter
	limit   int
}

// LocalLimiter keeps token buckets in process memory. The least recently
// used keys are evicted once size is reached.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *bucket]
}

func NewLocalLimiter(size int) (*LocalLimiter, error) {
	if size <= 0 {
		size = DefaultLocalKeys
	}
	cache, err := lru.New[string, *bucket](size)
	if err != nil {
		return nil, fmt.Errorf("creating bucket cache: %w", err)
	}
	return &LocalLimiter{buckets: cache}, nil
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	if !ok || b.limit != limit {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(limit), limit), limit: limit}
		l.buckets.Add(key, b)
	}
	l.mu.Unlock()

	return b.limiter.Allow()
}

// Len reports how many keys currently hold a bucket.
func (l *LocalLimiter) Len() int {
	return l.buckets.Len()
}
