package telemetry

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var recorder = tracetest.NewSpanRecorder()

func TestMain(m *testing.M) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	code := m.Run()
	_ = tp.Shutdown(context.Background())
	os.Exit(code)
}

func endedSpan(t *testing.T, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no ended span named %q", name)
	return nil
}

func attr(s sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), nil))
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Environment:      "staging",
		OTelEnabled:      true,
		OTLPEndpoint:     "tempo:4318",
		OTelSamplingRate: 0.25,
	}
	got := ConfigFrom(cfg)
	assert.Equal(t, ServiceName, got.ServiceName)
	assert.Equal(t, "staging", got.Environment)
	assert.Equal(t, "tempo:4318", got.OTLPEndpoint)
	assert.True(t, got.Enabled)
	assert.Equal(t, 0.25, got.SamplingRate)
}

func TestTraceEngagement(t *testing.T) {
	be := NewBusinessEvents()

	_, span := be.TraceEngagement(context.Background(), "share", EngagementEventAttrs{
		PostID:   "post-1",
		UserID:   "user-1",
		Platform: "whatsapp",
	})
	RecordAccepted(span, "01EVENT")
	span.End()

	s := endedSpan(t, "engagement.track_share")
	v, ok := attr(s, "engagement.platform")
	require.True(t, ok)
	assert.Equal(t, "whatsapp", v.AsString())
	v, _ = attr(s, "engagement.event_id")
	assert.Equal(t, "01EVENT", v.AsString())
}

func TestRecordRejectedKeepsStatusOK(t *testing.T) {
	_, span := GetBusinessEvents().TraceEngagement(context.Background(), "endorsement", EngagementEventAttrs{PostID: "p"})
	RecordRejected(span, "self_endorsement")
	span.End()

	s := endedSpan(t, "engagement.track_endorsement")
	assert.NotEqual(t, codes.Error, s.Status().Code)
	v, _ := attr(s, "engagement.reason")
	assert.Equal(t, "self_endorsement", v.AsString())
}

func TestRecordError(t *testing.T) {
	_, span := GetBusinessEvents().TraceRetentionSweep(context.Background())
	RecordError(span, errors.New("store down"))
	RecordError(span, nil)
	span.End()

	s := endedSpan(t, "retention.sweep")
	assert.Equal(t, codes.Error, s.Status().Code)
}

type probe struct {
	ID   uint
	Name string
}

func TestGORMTracingPlugin(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, db.Use(GORMTracingPlugin("sqlite")))
	require.NoError(t, db.AutoMigrate(&probe{}))

	before := len(recorder.Ended())

	// No parent span: statement is not traced
	require.NoError(t, db.Create(&probe{Name: "untraced"}).Error)
	assert.Len(t, recorder.Ended(), before)

	ctx, parent := GetBusinessEvents().TraceLeaderboard(context.Background(), "all", 10)
	var rows []probe
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	parent.End()

	s := endedSpan(t, "db.select")
	v, _ := attr(s, "db.system")
	assert.Equal(t, "sqlite", v.AsString())
	v, _ = attr(s, "db.table")
	assert.Equal(t, "probes", v.AsString())
	assert.Equal(t, parent.SpanContext().TraceID(), s.SpanContext().TraceID())
}
