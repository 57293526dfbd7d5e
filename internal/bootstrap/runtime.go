// Package bootstrap wires process-level dependencies shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/observability"
	"agora/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs database.ApplySchema after connecting.
	ApplySchema bool
	// SeedBuiltIns upserts the built-in communities.
	SeedBuiltIns bool
	// Tracing starts the tracer provider configured by OTEL_*.
	Tracing bool
	// Version is reported as service.version on spans.
	Version string
}

// Runtime holds the connections a command runs against. Redis is nil when
// REDIS_URL is unset or unreachable.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	stopTracing func(context.Context) error
}

// Open connects everything opts asks for. On error nothing is left open.
func Open(ctx context.Context, cfg *config.Config, opts Options) (rt *Runtime, err error) {
	rt = &Runtime{stopTracing: func(context.Context) error { return nil }}
	defer func() {
		if err != nil {
			_ = rt.Close(ctx)
			rt = nil
		}
	}()

	if opts.Tracing {
		stop, err := InitTracing(cfg, opts.Version)
		if err != nil {
			return rt, fmt.Errorf("init tracing: %w", err)
		}
		rt.stopTracing = stop
	}

	if rt.DB, err = database.Connect(cfg); err != nil {
		return rt, fmt.Errorf("database connection failed: %w", err)
	}
	if err = observability.RegisterQueryMetrics(rt.DB); err != nil {
		return rt, fmt.Errorf("register query metrics: %w", err)
	}
	if opts.ApplySchema {
		if err = database.ApplySchema(ctx, rt.DB, cfg); err != nil {
			return rt, fmt.Errorf("apply schema: %w", err)
		}
	}

	if cfg.RedisURL == "" {
		middleware.Logger.Info("REDIS_URL is empty, running without redis")
		cache.SetClient(nil)
	} else {
		rt.Redis = cache.InitRedis(ctx, cfg.RedisURL)
	}

	if opts.SeedBuiltIns {
		if err = seed.Communities(ctx, rt.DB); err != nil {
			return rt, fmt.Errorf("failed to seed built-in communities: %w", err)
		}
		middleware.Logger.Info("built-in communities ensured", slog.Int("count", len(seed.BuiltInCommunities)))
	}
	return rt, nil
}

// Close flushes spans and closes Redis and the database pool.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := rt.stopTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop tracing: %w", err))
	}
	if rt.Redis != nil {
		if cache.GetClient() == rt.Redis {
			cache.SetClient(nil)
		}
		if err := rt.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// InitTracing starts the tracer provider described by cfg and returns its
// shutdown function. Disabled tracing returns a no-op.
func InitTracing(cfg *config.Config, version string) (func(context.Context) error, error) {
	return observability.InitTracing(observability.TracingConfig{
		ServiceName:    "agora-api",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.OTelEnabled,
		Exporter:       cfg.OTelExporter,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SamplerRatio:   cfg.OTelSamplerRatio,
	})
}
