package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessEvents traces engagement operations above the HTTP and database layers
type BusinessEvents struct {
	tracer trace.Tracer
}

// NewBusinessEvents creates a new business events tracer
func NewBusinessEvents() *BusinessEvents {
	return &BusinessEvents{
		tracer: otel.Tracer("engagement"),
	}
}

// ============================================================================
// ENGAGEMENT TRACKING
// ============================================================================

// EngagementEventAttrs attributes for engagement operations
type EngagementEventAttrs struct {
	PostID   string
	UserID   string
	Platform string // shares only
}

// TraceEngagement creates a span for a view, share or endorsement submission
func (be *BusinessEvents) TraceEngagement(ctx context.Context, kind string, attrs EngagementEventAttrs) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "engagement.track_"+kind,
		trace.WithAttributes(
			attribute.String("engagement.kind", kind),
			attribute.String("post.id", attrs.PostID),
			attribute.String("user.id", attrs.UserID),
		),
	)

	if attrs.Platform != "" {
		span.SetAttributes(attribute.String("engagement.platform", attrs.Platform))
	}

	return ctx, span
}

// RecordAccepted marks an engagement span as accepted
func RecordAccepted(span trace.Span, eventID string) {
	span.SetAttributes(
		attribute.Bool("engagement.accepted", true),
		attribute.String("engagement.event_id", eventID),
	)
}

// RecordRejected marks an engagement span as rejected with a reason.
// Rejections are expected outcomes, so the span status stays OK.
func RecordRejected(span trace.Span, reason string) {
	span.SetAttributes(
		attribute.Bool("engagement.accepted", false),
		attribute.String("engagement.reason", reason),
	)
}

// RecordError records a store or directory failure on a span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}

// ============================================================================
// LEADERBOARD
// ============================================================================

// TraceLeaderboard creates a span for a leaderboard computation
func (be *BusinessEvents) TraceLeaderboard(ctx context.Context, period string, limit int) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "leaderboard.rank",
		trace.WithAttributes(
			attribute.String("leaderboard.period", period),
			attribute.Int("leaderboard.limit", limit),
		),
	)
}

// ============================================================================
// RETENTION
// ============================================================================

// TraceRetentionSweep creates a span for one retention sweep
func (be *BusinessEvents) TraceRetentionSweep(ctx context.Context) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "retention.sweep")
}

// ============================================================================
// HELPER: Global instance for convenient access
// ============================================================================

var globalBusinessEvents *BusinessEvents

// GetBusinessEvents returns the global business events tracer
func GetBusinessEvents() *BusinessEvents {
	if globalBusinessEvents == nil {
		globalBusinessEvents = NewBusinessEvents()
	}
	return globalBusinessEvents
}
