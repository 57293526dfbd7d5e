package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. It is also installed as
// slog.Default.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// contextKeys are copied from the context onto every record, under the
// key's own name.
var contextKeys = []contextKey{RequestIDKey, UserIDKey, TraceIDKey}

// ctxHandler decorates records with request-scoped context values.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, k := range contextKeys {
		if v := ctx.Value(k); v != nil {
			r.AddAttrs(slog.Any(string(k), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// parseLevel accepts slog level names in any case, plus "warning".
// Anything else is info.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger writes JSON in production-like environments and text elsewhere.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{h})
}

func init() {
	Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	slog.SetDefault(Logger)
}

// ContextMiddleware copies the request and trace IDs from Fiber locals into
// the user context. The authenticator adds the user ID once known.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for local, key := range map[string]contextKey{"requestid": RequestIDKey, "traceID": TraceIDKey} {
			if v, ok := c.Locals(local).(string); ok && v != "" {
				ctx = context.WithValue(ctx, key, v)
			}
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// probePaths are logged at debug so health checks and scrapes do not
// drown out real traffic.
var probePaths = []string{"/health", "/metrics"}

// StructuredLogger logs one record per request once the handler chain
// has finished.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}

		level, msg := slog.LevelInfo, "request processed"
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level, msg = slog.LevelError, "request failed"
		case status >= fiber.StatusInternalServerError:
			level, msg = slog.LevelError, "request failed"
		case isProbe(c.Path()):
			level = slog.LevelDebug
		}
		Logger.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}

func isProbe(path string) bool {
	for _, p := range probePaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
