package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("admissions", "api", reg)

	m.PermissionCacheLookups.WithLabelValues("role_features", "hit").Inc()
	m.NotificationPushRetries.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["admissions_api_permission_cache_lookups_total"])
	assert.True(t, names["admissions_api_notification_push_retries_total"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationPushRetries))
}

func TestNewMetricsWithoutRegistry(t *testing.T) {
	// Two instances must not collide when nothing is registered.
	a := NewMetrics("admissions", "test", nil)
	b := NewMetrics("admissions", "test", nil)
	a.FanoutFailures.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.FanoutFailures))
}
