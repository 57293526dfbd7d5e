package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	b, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first and on a miss calls fetch, which must populate dest,
// then stores dest under key for ttl. Cache failures never fail the read:
// a broken entry or an unreachable Redis falls through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
