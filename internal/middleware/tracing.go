package middleware

import (
	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request, continuing any W3C
// trace context the caller sent. The span is renamed to the matched route
// once routing is done, and its trace ID is echoed as X-Trace-ID.
// Probe paths are not traced.
func TracingMiddleware() fiber.Handler {
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		if isProbe(c.Path()) {
			return c.Next()
		}

		parent := propagator.Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
				semconv.ClientAddress(c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		if r := c.Route(); r != nil && r.Path != "" {
			span.SetName(c.Method() + " " + r.Path)
			span.SetAttributes(semconv.HTTPRoute(r.Path))
		}
		status := c.Response().StatusCode()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			span.SetAttributes(attribute.Int64("user.id", int64(uid)))
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, fiber.ErrInternalServerError.Message)
		}
		return err
	}
}
