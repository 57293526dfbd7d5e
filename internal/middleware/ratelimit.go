package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Rule is a fixed-window limit on one named action, counted per caller in
// Redis. Authenticated callers are counted by user ID, others by IP.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	// FailClosed rejects requests with 503 when Redis is unreachable.
	// By default they are let through.
	FailClosed bool
}

// Decision is the outcome of counting one request against a Rule.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

var errNoRedis = errors.New("rate limit store not configured")

// Throttling is skipped in these environments so local runs, tests and
// load tests are never limited.
var unthrottledEnvs = []string{"", "test", "development", "stress"}

func throttlingDisabled() bool {
	return slices.Contains(unthrottledEnvs, strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV"))))
}

func (r Rule) key(caller string) string {
	return "rl:" + r.Name + ":" + caller
}

// Allow counts one hit for caller. The window opens on the first hit.
func (r Rule) Allow(ctx context.Context, rdb *redis.Client, caller string) (Decision, error) {
	if throttlingDisabled() {
		return Decision{Allowed: true, Remaining: r.Limit}, nil
	}
	if rdb == nil {
		return Decision{}, errNoRedis
	}

	key := r.key(caller)
	var hits *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		hits = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	}); err != nil {
		return Decision{}, err
	}

	left := ttl.Val()
	if left < 0 {
		if err := rdb.PExpire(ctx, key, r.Window).Err(); err != nil {
			return Decision{}, err
		}
		left = r.Window
	}

	n := int(hits.Val())
	return Decision{
		Allowed:    n <= r.Limit,
		Remaining:  max(r.Limit-n, 0),
		RetryAfter: left,
	}, nil
}

// Throttle enforces rule on every request it wraps.
func Throttle(rdb *redis.Client, rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			caller = fmt.Sprintf("user:%d", uid)
		}

		d, err := rule.Allow(c.UserContext(), rdb, caller)
		if err != nil {
			if !rule.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			RateLimited.WithLabelValues(rule.Name).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(d.RetryAfter.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
