package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"

	spanKey         = "showcase:span"
	spanStartKey    = "showcase:span_start"
	maxStatementLen = 500
)

// GORMTracingPlugin returns a GORM plugin that traces database operations.
// system is the db.system attribute, e.g. "postgresql" or "sqlite".
func GORMTracingPlugin(system string) gorm.Plugin {
	return &tracingPlugin{
		tracer: otel.Tracer("gorm"),
		system: system,
	}
}

type tracingPlugin struct {
	tracer trace.Tracer
	system string
}

func (p *tracingPlugin) Name() string {
	return "telemetry:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []struct {
		op  string
		err error
	}{
		{"query", cb.Query().Before("gorm:query").Register("showcase:span_query", p.begin("SELECT"))},
		{"create", cb.Create().Before("gorm:create").Register("showcase:span_create", p.begin("INSERT"))},
		{"update", cb.Update().Before("gorm:update").Register("showcase:span_update", p.begin("UPDATE"))},
		{"delete", cb.Delete().Before("gorm:delete").Register("showcase:span_delete", p.begin("DELETE"))},
		{"raw", cb.Raw().Before("gorm:raw").Register("showcase:span_raw", p.begin("RAW"))},
		{"query", cb.Query().After("gorm:query").Register("showcase:end_query", p.end)},
		{"create", cb.Create().After("gorm:create").Register("showcase:end_create", p.end)},
		{"update", cb.Update().After("gorm:update").Register("showcase:end_update", p.end)},
		{"delete", cb.Delete().After("gorm:delete").Register("showcase:end_delete", p.end)},
		{"raw", cb.Raw().After("gorm:raw").Register("showcase:end_raw", p.end)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return fmt.Errorf("register %s tracing callback: %w", r.op, r.err)
		}
	}
	return nil
}

func (p *tracingPlugin) begin(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) { p.startSpan(db, operation) }
}

func (p *tracingPlugin) startSpan(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	// Only trace statements that belong to an engagement or HTTP span
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return
	}

	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}

	_, span := p.tracer.Start(ctx, fmt.Sprintf("db.%s", strings.ToLower(operation)),
		trace.WithAttributes(
			attribute.String(dbSystemKey, p.system),
			attribute.String(dbTableKey, table),
			attribute.String(dbOperationKey, operation),
		),
	)

	db.InstanceSet(spanKey, span)
	db.InstanceSet(spanStartKey, time.Now())
}

func (p *tracingPlugin) end(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if started, ok := db.InstanceGet(spanStartKey); ok {
		if t, ok := started.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(t).Milliseconds()))
		}
	}

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLen {
			sql = sql[:maxStatementLen] + "..."
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
