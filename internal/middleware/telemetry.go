package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/util"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware starts a server span per request using the official
// otelgin middleware. Pair it with SpanEnrichmentMiddleware.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanEnrichmentMiddleware adds engagement attributes to the request span
// once the handler chain has run. It must be registered after TracingMiddleware.
func SpanEnrichmentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if userID := c.GetString(util.UserIDKey); userID != "" {
			span.SetAttributes(attribute.String("user.id", userID))
		}
		if postID := c.Param("id"); postID != "" {
			span.SetAttributes(attribute.String("post.id", postID))
		}
		if period := c.Query("period"); period != "" {
			span.SetAttributes(attribute.String("leaderboard.period", period))
		}
		if requestID := c.GetString("request_id"); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
		case status >= 400 && status != 404:
			span.SetStatus(codes.Error, "client error")
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err)
			}
		}
	}
}
