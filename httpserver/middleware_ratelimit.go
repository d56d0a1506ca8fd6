package httpserver

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limit is the sustained rate in requests per second.
	Limit rate.Limit

	// Burst is the bucket capacity.
	Burst int

	// KeyFunc groups requests into buckets. Nil means one global bucket.
	KeyFunc KeyFunc

	// Redis shares buckets between replicas. Nil keeps them in memory.
	Redis redis.UniversalClient

	// RedisKeyPrefix defaults to "transitd:ratelimit:".
	RedisKeyPrefix string

	// IdleTTL is how long an untouched bucket is kept. Defaults to a minute.
	IdleTTL time.Duration

	// Logger receives Redis failures. The limiter fails open on them.
	Logger zerolog.Logger
}

// DefaultRateLimitConfig returns 20 requests per second per client IP with
// a burst of 40.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:          20,
		Burst:          40,
		KeyFunc:        KeyFuncByIP(),
		RedisKeyPrefix: "transitd:ratelimit:",
		IdleTTL:        time.Minute,
		Logger:         zerolog.Nop(),
	}
}

// bucketStore decides whether the bucket under key has a token left.
type bucketStore interface {
	allow(ctx context.Context, key string) (bool, error)
}

// RateLimit returns token bucket middleware. Rejected requests get 429 with
// a Retry-After hint.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "transitd:ratelimit:"
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = func(*http.Request) string { return "global" }
	}

	var store bucketStore
	if cfg.Redis != nil {
		store = &redisBuckets{
			client: cfg.Redis,
			prefix: cfg.RedisKeyPrefix,
			limit:  float64(cfg.Limit),
			burst:  cfg.Burst,
			ttl:    cfg.IdleTTL,
		}
	} else {
		store = newMemoryBuckets(cfg.Limit, cfg.Burst, cfg.IdleTTL)
	}

	retryAfter := "1"
	if cfg.Limit > 0 && cfg.Limit < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / float64(cfg.Limit))))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := store.allow(r.Context(), keyOf(r))
			if err != nil {
				cfg.Logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				ok = true
			}
			if !ok {
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded",
					Error{Field: "rate_limit", Message: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type memoryBuckets struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	buckets   map[string]*memoryBucket
	lastSweep time.Time
}

func newMemoryBuckets(limit rate.Limit, burst int, ttl time.Duration) *memoryBuckets {
	return &memoryBuckets{
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		buckets:   make(map[string]*memoryBucket),
		lastSweep: time.Now(),
	}
}

func (m *memoryBuckets) allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	if now.Sub(m.lastSweep) > m.ttl {
		for k, b := range m.buckets {
			if now.Sub(b.lastSeen) > m.ttl {
				delete(m.buckets, k)
			}
		}
		m.lastSweep = now
	}
	b, ok := m.buckets[key]
	if !ok {
		b = &memoryBucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

func (m *memoryBuckets) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// takeToken refills the bucket at KEYS[1] for the time elapsed since its last
// update and takes one token if available. Returns 1 when a token was taken.
//
// ARGV: rate per second, capacity, now in milliseconds, idle ttl in seconds.
var takeToken = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

tokens = math.min(capacity, tokens + math.max(0, now - ts) / 1000 * rate)

local taken = 0
if tokens >= 1 then
  tokens = tokens - 1
  taken = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', KEYS[1], ttl)
return taken
`)

type redisBuckets struct {
	client redis.UniversalClient
	prefix string
	limit  float64
	burst  int
	ttl    time.Duration
}

func (s *redisBuckets) allow(ctx context.Context, key string) (bool, error) {
	ttl := int(math.Ceil(s.ttl.Seconds()))
	taken, err := takeToken.Run(ctx, s.client,
		[]string{s.prefix + key},
		s.limit, s.burst, time.Now().UnixMilli(), ttl,
	).Int()
	if err != nil {
		return false, err
	}
	return taken == 1, nil
}
