package middleware

import (
	"strconv"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// RateLimited counts requests rejected by the Redis rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by resource",
	}, []string{"resource"})

	// HTTPErrors counts 4xx/5xx responses by route template and status.
	HTTPErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_http_errors_total",
		Help: "HTTP error responses by route and status code",
	}, []string{"route", "status"})
)

// InitMetrics creates the fiberprometheus middleware for the service.
// Collectors register on the default registry, so it must be called once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware records request metrics through prom and counts error responses
// by their matched route template, so /api/posts/1 and /api/posts/2 share a series.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	handler := prom.Middleware
	return func(c *fiber.Ctx) error {
		err := handler(c)

		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			route := c.Path()
			if r := c.Route(); r != nil && r.Path != "" {
				route = r.Path
			}
			HTTPErrors.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		return err
	}
}
