package testutil

import (
	"testing"

	"agora/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewTestRedis starts a miniredis server and returns a client connected to it.
func NewTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// UseCache installs a miniredis-backed client as the process cache for the
// duration of the test.
func UseCache(t testing.TB) *miniredis.Miniredis {
	t.Helper()
	mr, client := NewTestRedis(t)
	prev := cache.GetClient()
	cache.SetClient(client)
	t.Cleanup(func() { cache.SetClient(prev) })
	return mr
}
