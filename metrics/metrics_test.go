package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/api/banner", 200, time.Millisecond)
		m.RecordTick(TickUpdated, 50)
		m.RecordAssetJob("ok")
	})
}

func TestMetrics_RecordTick(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTick(TickUpdated, 50)
	m.RecordTick(TickUnchanged, 50)
	m.RecordTick(TickFailed, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscountTicks.WithLabelValues(TickUpdated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscountTicks.WithLabelValues(TickFailed)))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.DiscountPercentage))
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("GET", "/api/banner", 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/banner", "200")))
}
