// Package storage keeps uploaded image bytes in object storage, either a MinIO
// (S3-compatible) bucket or a local directory.
package storage

import (
	"context"
	"errors"

	"agora/internal/config"
)

// ErrObjectNotFound is returned by Get for a key that holds no object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is a flat key/value store for binary objects.
type ObjectStore interface {
	Name() string
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// New returns a MinIO store when an endpoint is configured and a local
// directory store otherwise.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	if cfg.MinioEndpoint == "" {
		return NewLocalStore(cfg.ImageUploadDir)
	}
	store, err := NewMinioStore(MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Bucket:    cfg.MinioBucket,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
