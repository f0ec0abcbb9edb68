package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/creatorpay/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware starts a server span per request, named after the matched
// route. It must run after the request logger so the request id is known.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("creatorpay/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx = withRequestBaggage(ctx)

		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(started).Milliseconds()),
			attribute.String("request_id", obscontext.RequestIDFromContext(ctx)),
			attribute.String("creatorpay.resource_id", c.Param("id")),
		}
		// Auth middleware runs inside this span and stores the actor on the request.
		if actorType, actorID := obscontext.ActorFromContext(c.Request.Context()); actorType != "" {
			attrs = append(attrs,
				attribute.String("creatorpay.actor_type", actorType),
				attribute.String("creatorpay.actor_id", actorID),
			)
		}
		span.SetAttributes(SafeAttributes(attrs...)...)
		recordOutcome(span, c)
	}
}

func withRequestBaggage(ctx context.Context) context.Context {
	requestID := obscontext.RequestIDFromContext(ctx)
	if requestID == "" {
		return ctx
	}
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// recordOutcome marks 5xx spans as failed. A 4xx span gets a rejection event
// carrying the error code.
func recordOutcome(span trace.Span, c *gin.Context) {
	status := c.Writer.Status()
	lastErr := c.Errors.Last()
	switch {
	case status >= http.StatusInternalServerError:
		if lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
		}
		span.SetStatus(codes.Error, "request error")
	case status >= http.StatusBadRequest && lastErr != nil:
		if safeErr := SafeError(lastErr.Err); safeErr != nil {
			span.AddEvent("request.rejected", trace.WithAttributes(
				attribute.String("error.code", safeErr.Error()),
			))
		}
	}
}
