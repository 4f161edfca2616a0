package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	apierrors "github.com/Baaaki/taskvault/internal/errors"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiterConfig defines rate limiting rules
type RateLimiterConfig struct {
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Time window (e.g., 1 minute)
}

// RateDecision is the outcome of one Allow call.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

// RateLimiter applies a Limiter per client IP
type RateLimiter struct {
	limiter Limiter
	skip    map[string]struct{}
}

// NewRateLimiter limits every path except skipPaths.
func NewRateLimiter(limiter Limiter, skipPaths ...string) *RateLimiter {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &RateLimiter{limiter: limiter, skip: skip}
}

// Middleware returns a Gin middleware function for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		clientIP := c.ClientIP()

		decision, err := rl.limiter.Allow(c.Request.Context(), clientIP)
		if err != nil {
			// Fail open: the limiter is not part of the auth contract
			logger.Log.Warn("Rate limiter unavailable",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			c.Next()
			return
		}

		resetSeconds := ceilSeconds(decision.ResetAfter)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !decision.Allowed {
			if resetSeconds < 1 {
				resetSeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			apierrors.RateLimited(c)
			return
		}

		c.Next()
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// RedisLimiter is a fixed window counter shared by every process using the
// same Redis.
type RedisLimiter struct {
	redis  *redis.Client
	config RateLimiterConfig
}

func NewRedisLimiter(redisClient *redis.Client, config RateLimiterConfig) *RedisLimiter {
	return &RedisLimiter{
		redis:  redisClient,
		config: config,
	}
}

// Allow uses INCR with EXPIRE on a per-key counter
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return RateDecision{}, err
	}

	ttl, err := rl.redis.TTL(ctx, redisKey).Result()
	if err != nil {
		return RateDecision{}, err
	}

	// First hit of the window, or a counter left without expiry
	if count == 1 || ttl < 0 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.Window).Err(); err != nil {
			return RateDecision{}, err
		}
		ttl = rl.config.Window
	}

	remaining := rl.config.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return RateDecision{
		Allowed:    count <= int64(rl.config.MaxRequests),
		Limit:      rl.config.MaxRequests,
		Remaining:  remaining,
		ResetAfter: ttl,
	}, nil
}
