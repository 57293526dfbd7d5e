package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRepoLogger_WritesThroughDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := NewRepoLogger("posts")
	l.LogError(context.Background(), errors.New("boom"), "like")
	l.LogRepair(context.Background(), slog.Any("post_id", 3))

	out := buf.String()
	assert.Contains(t, out, `"table":"posts"`)
	assert.Contains(t, out, `"operation":"like"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"post_id":3`)

	buf.Reset()
	Config.EnableRepoLogging = false
	t.Cleanup(func() { Config.EnableRepoLogging = true })
	l.LogError(context.Background(), errors.New("quiet"), "like")
	assert.Empty(t, buf.String())
}

func TestWSLogger_TagsHubAndUser(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := NewWSLogger("engagement hub")
	l.LogConnect(context.Background(), 7)
	l.LogDisconnect(context.Background(), 7, "closed")

	out := buf.String()
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"hub":"engagement hub"`)))
	assert.Contains(t, out, `"user_id":7`)
	assert.Contains(t, out, `"reason":"closed"`)
}

func TestRegisterQueryMetrics(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, RegisterQueryMetrics(db))

	type widget struct {
		ID   uint
		Name string
	}
	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)

	var got []widget
	require.NoError(t, db.Find(&got).Error)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(DatabaseQueryLatency), 2)
}

func TestStartSpan_EndSpanRecordsError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "engagement.like_post")
	require.NotNil(t, ctx)
	// The global no-op tracer still hands back a usable span.
	EndSpan(span, errors.New("failed"))
}

func TestTracingConfig_Sampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", TracingConfig{SamplerRatio: 1}.sampler().Description())
	assert.Contains(t, TracingConfig{SamplerRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, TracingConfig{}.sampler().Description(), "AlwaysOffSampler")
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}
