package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	t.Run("bypassed outside production-like environments", func(t *testing.T) {
		for _, env := range []string{"test", "development", "stress"} {
			t.Setenv("APP_ENV", env)
			q, err := CheckRateLimit(context.Background(), nil, "login", "1", 1, time.Minute)
			assert.NoError(t, err, env)
			assert.True(t, q.Allowed, env)
		}
	})

	t.Run("nil redis is an error in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		q, err := CheckRateLimit(context.Background(), nil, "login", "1", 1, time.Minute)
		assert.ErrorIs(t, err, errNoLimiterStore)
		assert.False(t, q.Allowed)
	})

	t.Run("counts within a fixed window", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		ctx := context.Background()

		for want := 1; want >= 0; want-- {
			q, err := CheckRateLimit(ctx, rdb, "reply", "user:7", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, q.Allowed)
			assert.Equal(t, want, q.Remaining)
		}

		q, err := CheckRateLimit(ctx, rdb, "reply", "user:7", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, q.Allowed)
		assert.Zero(t, q.Remaining)
		assert.Greater(t, q.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, q.RetryAfter, time.Minute)
		assert.Greater(t, mr.TTL("rl:reply:user:7"), time.Duration(0))

		mr.FastForward(2 * time.Minute)
		q, err = CheckRateLimit(ctx, rdb, "reply", "user:7", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, q.Allowed)
	})

	t.Run("unreachable redis is an error", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		mr.Close()
		_, err := CheckRateLimit(context.Background(), rdb, "login", "1", 1, time.Minute)
		assert.Error(t, err)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("Bypass in test mode", func(t *testing.T) {
		app := fiber.New()
		t.Setenv("APP_ENV", "test")
		app.Get("/test", RateLimit(nil, 1, time.Minute), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		app := fiber.New()
		t.Setenv("APP_ENV", "production")
		app.Get("/test", RateLimit(nil, 1, time.Minute), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		app := fiber.New()
		t.Setenv("APP_ENV", "production")
		app.Get("/sensitive", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/sensitive", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("rejects once the limit is reached", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newTestRedis(t)

		app := fiber.New()
		app.Post("/thread", RateLimit(rdb, 1, time.Minute, "thread"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/thread", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/thread", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
		_ = resp.Body.Close()
	})

	t.Run("authenticated users get their own counter", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)

		app := fiber.New()
		app.Post("/reply", func(c *fiber.Ctx) error {
			c.Locals("userID", uint(42))
			return c.Next()
		}, RateLimit(rdb, 5, time.Minute, "reply"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/reply", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "4", resp.Header.Get("X-RateLimit-Remaining"))
		_ = resp.Body.Close()
		assert.True(t, mr.Exists("rl:reply:user:42"))
	})
}
