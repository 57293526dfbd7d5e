package storage

import (
	"context"
	"testing"

	"agora/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ab/cd/image.jpg", "image/jpeg", []byte("jpeg-bytes")))

	got, err := store.Get(ctx, "ab/cd/image.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), got)

	require.NoError(t, store.Remove(ctx, "ab/cd/image.jpg"))
	_, err = store.Get(ctx, "ab/cd/image.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// removing twice is fine
	assert.NoError(t, store.Remove(ctx, "ab/cd/image.jpg"))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../secret", "a/../../b", ""} {
		assert.Error(t, store.Put(ctx, key, "", []byte("x")), key)
		_, err := store.Get(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestNew_FallsBackToLocal(t *testing.T) {
	cfg := &config.Config{ImageUploadDir: t.TempDir()}
	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "local", store.Name())
}

func TestNewMinioStore_BuildsClient(t *testing.T) {
	store, err := NewMinioStore(MinioConfig{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "agora-images",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio", store.Name())
}
