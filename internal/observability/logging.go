// Package observability holds the API's metrics, tracing and the scoped
// loggers used by repositories and the WebSocket hub.
package observability

import (
	"context"
	"log/slog"
)

// LoggingConfig switches the automatic repository and WebSocket logs.
type LoggingConfig struct {
	EnableRepoLogging bool
	EnableWSLogging   bool
}

// Config is read on every log call, so tests may flip it at runtime.
var Config = LoggingConfig{
	EnableRepoLogging: true,
	EnableWSLogging:   true,
}

// RepoLogger tags records with the table a repository owns. It writes
// through slog.Default at call time, which in the API server is the
// request-aware handler.
type RepoLogger struct {
	table string
}

func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

func (l *RepoLogger) emit(ctx context.Context, level slog.Level, msg, op string, attrs []slog.Attr) {
	if !Config.EnableRepoLogging {
		return
	}
	attrs = append([]slog.Attr{slog.String("table", l.table), slog.String("operation", op)}, attrs...)
	slog.Default().LogAttrs(ctx, level, msg, attrs...)
}

func (l *RepoLogger) LogCreate(ctx context.Context, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelDebug, "row created", "create", attrs)
}

// LogDelete is logged at info since deletes cascade.
func (l *RepoLogger) LogDelete(ctx context.Context, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelInfo, "rows deleted", "delete", attrs)
}

// LogRepair records a denormalized counter that had drifted from its edges.
func (l *RepoLogger) LogRepair(ctx context.Context, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelWarn, "counter drift repaired", "reconcile", attrs)
}

func (l *RepoLogger) LogError(ctx context.Context, err error, op string) {
	l.emit(ctx, slog.LevelError, "repository error", op, []slog.Attr{slog.String("error", err.Error())})
}

// WSLogger logs connection lifecycle for one hub.
type WSLogger struct {
	hub string
}

func NewWSLogger(hub string) *WSLogger {
	return &WSLogger{hub: hub}
}

func (l *WSLogger) LogConnect(ctx context.Context, userID uint) {
	l.emit(ctx, "websocket connected", userID)
}

func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	l.emit(ctx, "websocket disconnected", userID, slog.String("reason", reason))
}

func (l *WSLogger) emit(ctx context.Context, msg string, userID uint, extra ...slog.Attr) {
	if !Config.EnableWSLogging {
		return
	}
	attrs := append([]slog.Attr{slog.String("hub", l.hub), slog.Uint64("user_id", uint64(userID))}, extra...)
	slog.Default().LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}
