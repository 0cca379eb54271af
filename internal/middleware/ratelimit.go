package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"circle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Quota is the state of one fixed window after counting a request.
type Quota struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

var errNoLimiterStore = errors.New("rate limit store not configured")

// fixedWindow increments the counter and starts its window in one round trip,
// so a crash between the two cannot leave a counter without expiry.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// rateLimitBypassed is true in test, development and stress environments.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// CheckRateLimit counts one request by id against resource's limit per window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Quota, error) {
	if rateLimitBypassed() {
		return Quota{Allowed: true, Remaining: limit}, nil
	}
	if rdb == nil {
		return Quota{}, errNoLimiterStore
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	vals, err := fixedWindow.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
		return Quota{}, err
	}
	count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond

	q := Quota{Allowed: count <= int64(limit), Remaining: limit - int(count)}
	if q.Remaining < 0 {
		q.Remaining = 0
	}
	if !q.Allowed {
		q.RetryAfter = ttl
	}
	return q, nil
}

// RateLimit limits requests per user (or per client IP before auth) with
// FailOpen. name scopes the counter; it defaults to the request path.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		id := "ip:" + c.IP()
		if userID, ok := UserIDFrom(c); ok {
			id = "user:" + strconv.FormatUint(uint64(userID), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		q, err := CheckRateLimit(ctx, rdb, resource, id, limit, window)
		if err != nil {
			Logger.WarnContext(ctx, "rate limit store unavailable",
				slog.String("resource", resource),
				slog.Bool("fail_closed", policy == FailClosed),
				slog.String("error", err.Error()),
			)
			if policy == FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
		if !q.Allowed {
			observability.RateLimitRejections.WithLabelValues(resource).Inc()
			secs := int(q.RetryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
