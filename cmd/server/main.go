// Command main is the entry point for the Agora API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/server"

	"golang.org/x/sync/errgroup"
)

var version = "dev"

const shutdownGrace = 10 * time.Second

// @title Agora API
// @version 1.0
// @description Community platform API: users, communities, posts, threaded comments, likes and shares.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@agora.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, bootstrap.Options{
		ApplySchema:  true,
		SeedBuiltIns: true,
		Tracing:      true,
		Version:      version,
	})
	if err != nil {
		return err
	}

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis)
	if err != nil {
		_ = rt.Close(context.Background())
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		middleware.Logger.Info("shutting down", slog.Duration("grace", shutdownGrace))
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return errors.Join(srv.Shutdown(sctx), rt.Close(sctx))
	})
	return g.Wait()
}
