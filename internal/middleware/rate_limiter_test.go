package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisLimiter creates a Redis limiter backed by miniredis
func setupRedisLimiter(t *testing.T, maxRequests int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client, RateLimiterConfig{
		MaxRequests: maxRequests,
		Window:      window,
	}), mr
}

func newLimitedRouter(limiter Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(NewRateLimiter(limiter, "/", "/health").Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func doRequest(router http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// limiterFactories runs the middleware tests against both backends
func limiterFactories(t *testing.T) map[string]func(max int, window time.Duration) Limiter {
	return map[string]func(int, time.Duration) Limiter{
		"memory": func(max int, window time.Duration) Limiter {
			return NewMemoryLimiter(RateLimiterConfig{MaxRequests: max, Window: window})
		},
		"redis": func(max int, window time.Duration) Limiter {
			rl, _ := setupRedisLimiter(t, max, window)
			return rl
		},
	}
}

func TestRateLimiter_AllowsRequestsUnderLimit(t *testing.T) {
	for name, factory := range limiterFactories(t) {
		t.Run(name, func(t *testing.T) {
			router := newLimitedRouter(factory(5, time.Minute))

			for i := 0; i < 5; i++ {
				w := doRequest(router, "/test", "192.168.1.1:12345")

				assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
				assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
				assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
			}
		})
	}
}

func TestRateLimiter_BlocksRequestsOverLimit(t *testing.T) {
	for name, factory := range limiterFactories(t) {
		t.Run(name, func(t *testing.T) {
			router := newLimitedRouter(factory(5, time.Minute))

			for i := 0; i < 5; i++ {
				w := doRequest(router, "/test", "192.168.1.1:12345")
				require.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
			}

			w := doRequest(router, "/test", "192.168.1.1:12345")

			assert.Equal(t, http.StatusTooManyRequests, w.Code, "6th request should be rate limited")
			assert.JSONEq(t, `{"code":"RATE_LIMITED","message":"Rate limit exceeded"}`, w.Body.String())
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

			retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, retryAfter, 1)
			assert.LessOrEqual(t, retryAfter, 60)
		})
	}
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	for name, factory := range limiterFactories(t) {
		t.Run(name, func(t *testing.T) {
			router := newLimitedRouter(factory(3, time.Minute))

			for i := 0; i < 3; i++ {
				require.Equal(t, http.StatusOK, doRequest(router, "/test", "192.168.1.1:12345").Code)
			}
			assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/test", "192.168.1.1:12345").Code)

			assert.Equal(t, http.StatusOK, doRequest(router, "/test", "192.168.1.2:12345").Code, "IP2 has its own budget")
		})
	}
}

func TestRateLimiter_SkipsInfoAndHealth(t *testing.T) {
	router := newLimitedRouter(NewMemoryLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute}))

	for i := 0; i < 3; i++ {
		w := doRequest(router, "/health", "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))

		assert.Equal(t, http.StatusOK, doRequest(router, "/", "10.0.0.1:1").Code)
	}
	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/test", "10.0.0.1:1").Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	return RateDecision{}, errors.New("backend down")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	router := newLimitedRouter(failingLimiter{})

	w := doRequest(router, "/test", "10.0.0.1:1")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_RedisOutageFailsOpen(t *testing.T) {
	rl, mr := setupRedisLimiter(t, 1, time.Minute)
	router := newLimitedRouter(rl)
	mr.Close()

	w := doRequest(router, "/test", "10.0.0.1:1")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	rl, mr := setupRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.ResetAfter)

	mr.FastForward(time.Minute + time.Second)

	d, err = rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestRedisLimiter_RepairsMissingExpiry(t *testing.T) {
	rl, mr := setupRedisLimiter(t, 5, time.Minute)
	require.NoError(t, mr.Set("ratelimit:1.2.3.4", "3"))

	_, err := rl.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, mr.TTL("ratelimit:1.2.3.4"))
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	// Arrange
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ml := NewMemoryLimiter(RateLimiterConfig{MaxRequests: 2, Window: time.Minute})
	ml.now = func() time.Time { return now }
	ctx := context.Background()

	allow := func() RateDecision {
		d, err := ml.Allow(ctx, "k")
		require.NoError(t, err)
		return d
	}

	// Act & Assert
	assert.True(t, allow().Allowed)
	now = now.Add(30 * time.Second)
	assert.True(t, allow().Allowed)

	denied := allow()
	assert.False(t, denied.Allowed)
	assert.Equal(t, 30*time.Second, denied.ResetAfter, "first hit leaves the window in 30s")

	now = now.Add(31 * time.Second)
	assert.True(t, allow().Allowed, "first hit slid out of the window")
	assert.False(t, allow().Allowed, "second and third hits still inside")
}

func TestMemoryLimiter_SweepsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ml := NewMemoryLimiter(RateLimiterConfig{MaxRequests: 10, Window: time.Minute})
	ml.now = func() time.Time { return now }
	ml.lastSweep = now

	for _, key := range []string{"a", "b", "c"} {
		_, err := ml.Allow(context.Background(), key)
		require.NoError(t, err)
	}
	require.Len(t, ml.hits, 3)

	now = now.Add(2 * time.Minute)
	_, err := ml.Allow(context.Background(), "d")
	require.NoError(t, err)

	assert.Len(t, ml.hits, 1)
	assert.Contains(t, ml.hits, "d")
}
