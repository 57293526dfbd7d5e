// Package cache holds the process-wide Redis client and the cache-aside
// helpers built on it. Every helper is a no-op while no client is set.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// slowCommand is the latency above which a command is logged.
const slowCommand = 100 * time.Millisecond

var client *redis.Client

// instrumentation counts failed commands and logs slow ones. redis.Nil is a
// cache miss, not a failure.
type instrumentation struct{}

func (instrumentation) DialHook(next redis.DialHook) redis.DialHook { return next }

func (instrumentation) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(ctx, cmd.Name(), time.Since(start), err)
		return err
	}
}

func (instrumentation) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe(ctx, "pipeline", time.Since(start), err)
		return err
	}
}

func observe(ctx context.Context, name string, took time.Duration, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(name).Inc()
	}
	if took > slowCommand {
		middleware.Logger.WarnContext(ctx, "slow redis command",
			slog.String("command", name), slog.Duration("took", took))
	}
}

// NewClient builds an instrumented client from a host:port address or a
// redis:// URL. It does not connect.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	c.AddHook(instrumentation{})
	return c, nil
}

// Connect builds a client and pings it within 5s.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	c, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// InitRedis sets the package client from addr. Redis is optional: on
// failure the client is cleared and the error only logged.
func InitRedis(ctx context.Context, addr string) *redis.Client {
	c, err := Connect(ctx, addr)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without it",
			slog.String("addr", addr), slog.String("error", err.Error()))
	} else {
		middleware.Logger.Info("redis connected", slog.String("addr", c.Options().Addr))
	}
	client = c
	return c
}

// GetClient returns the package client, nil when Redis is off.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the package client. Tests point it at miniredis.
func SetClient(c *redis.Client) {
	client = c
}
