package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Permission cache metrics
	PermissionCacheLookups   *prometheus.CounterVec
	PermissionCacheWrites    *prometheus.CounterVec
	PermissionRebuildLatency *prometheus.HistogramVec

	// Notification metrics
	NotificationsWritten     *prometheus.CounterVec
	NotificationPushRetries  prometheus.Counter
	NotificationPushFailures *prometheus.CounterVec
	FanoutFailures           prometheus.Counter

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them on reg.
// A nil reg keeps the collectors unregistered, which is what tests want.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PermissionCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "permission_cache_lookups_total",
			Help:      "Permission cache lookups by source and result",
		}, []string{"source", "result"}),
		PermissionCacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "permission_cache_writes_total",
			Help:      "Permission cache writes by source and mode",
		}, []string{"source", "mode"}),
		PermissionRebuildLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "permission_rebuild_duration_seconds",
			Help:      "Time spent rebuilding permission trees from the document store",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"source"}),

		NotificationsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_written_total",
			Help:      "Notification events persisted, by event type",
		}, []string{"event_type"}),
		NotificationPushRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_push_retries_total",
			Help:      "Optimistic lock conflicts retried while pushing notifications",
		}),
		NotificationPushFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_push_failures_total",
			Help:      "Notification cache pushes abandoned, by reason",
		}, []string{"reason"}),
		FanoutFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_fanout_failures_total",
			Help:      "Fan-out broadcasts that could not be published",
		}),

		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),
	}
}
