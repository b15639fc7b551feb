package mw

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/observability"
	redisstore "github.com/MrSnakeDoc/indexnotify/internal/store/redis"
	"github.com/MrSnakeDoc/indexnotify/internal/utils"
)

// Limiter decides whether one more request from key may proceed.
// retryAfter is only meaningful when ok is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 15 * time.Minute
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.RefillPerIPPerMin < 1 {
		c.RefillPerIPPerMin = 1
	}
	return c
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	cfg       RateLimitConfig
	limit     rate.Limit
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	cfg = cfg.withDefaults()
	return &MemoryLimiter{
		cfg:       cfg,
		limit:     rate.Limit(float64(cfg.RefillPerIPPerMin) / 60.0),
		visitors:  make(map[string]*visitor, 1024),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.visitors) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}
	v := l.visitors[key]
	if v == nil {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	res := v.limiter.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0, nil
	}
	// Give the token back; a rejected request must not consume the budget.
	res.CancelAt(now)
	return false, delay, nil
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.IdleTTL {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

// size returns the number of tracked keys.
func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RedisLimiter enforces a per-minute budget shared by every replica.
type RedisLimiter struct {
	store  *redisstore.RateLimitStore
	perMin int
}

func NewRedisLimiter(store *redisstore.RateLimitStore, perMin int) *RedisLimiter {
	if perMin < 1 {
		perMin = 1
	}
	return &RedisLimiter{store: store, perMin: perMin}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	ok, err := l.store.Allow(ctx, key, l.perMin)
	if err != nil || ok {
		return ok, 0, err
	}
	now := time.Now()
	return false, now.Truncate(redisstore.DefaultWindow).Add(redisstore.DefaultWindow).Sub(now), nil
}

// RateLimit rejects clients over budget with 429. Limiter errors let the
// request through.
func RateLimit(l Limiter, trustProxy bool, metrics *observability.Metrics, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, trustProxy)

			ok, retry, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable, allowing request",
					logger.String("remote_ip", key),
					logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RecordRateLimited()
				sec := int(math.Ceil(retry.Seconds()))
				if sec < 1 {
					sec = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(sec))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limited"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
