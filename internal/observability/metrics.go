package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementEvents counts committed engagement mutations by event type.
	EngagementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_engagement_events_total",
		Help: "Committed engagement mutations by event type",
	}, []string{"event"})

	// CounterRepairs counts denormalized counters rewritten by reconciliation.
	CounterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_counter_repairs_total",
		Help: "Denormalized counters that differed from their edge count and were rewritten",
	}, []string{"counter"})

	// EventPublishErrors counts events that could not be delivered to a sink.
	EventPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_event_publish_errors_total",
		Help: "Engagement events that failed to publish, by sink",
	}, []string{"sink"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

const queryStartKey = "agora:query_start"

// RegisterQueryMetrics installs GORM callbacks that observe every statement's
// latency in DatabaseQueryLatency.
func RegisterQueryMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "unknown"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		if err := s.before("metrics:before_"+s.op, before); err != nil {
			return err
		}
		if err := s.after("metrics:after_"+s.op, after(s.op)); err != nil {
			return err
		}
	}
	return nil
}
