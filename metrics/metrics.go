// Package metrics holds the Prometheus collectors of the API.
//
// Methods are nil-safe: a nil *Metrics is a no-op, so components can be
// built without metrics in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	TickUpdated   = "updated"
	TickCreated   = "created"
	TickUnchanged = "unchanged"
	TickFailed    = "failed"
)

type Metrics struct {
	// HTTPRequests counts requests by method, route template and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration tracks request latency by method and route template.
	HTTPDuration *prometheus.HistogramVec

	// DiscountTicks counts scheduler ticks by result.
	// Labels: result=[updated, created, unchanged, failed]
	DiscountTicks *prometheus.CounterVec

	// DiscountPercentage is the last value computed by the scheduler.
	DiscountPercentage prometheus.Gauge

	// AssetJobs counts processed asset cleanup jobs by result.
	AssetJobs *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer
// (prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pk55_http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pk55_http_request_duration_seconds",
				Help:    "HTTP request duration by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DiscountTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pk55_discount_ticks_total",
				Help: "Discount scheduler ticks by result",
			},
			[]string{"result"},
		),
		DiscountPercentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pk55_discount_percentage",
			Help: "Discount percentage computed by the last scheduler tick",
		}),
		AssetJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pk55_asset_jobs_total",
				Help: "Asset cleanup jobs processed by result",
			},
			[]string{"result"},
		),
	}

	registerer.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.DiscountTicks,
		m.DiscountPercentage,
		m.AssetJobs,
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordTick(result string, discount int) {
	if m == nil {
		return
	}
	m.DiscountTicks.WithLabelValues(result).Inc()
	if result != TickFailed {
		m.DiscountPercentage.Set(float64(discount))
	}
}

func (m *Metrics) RecordAssetJob(result string) {
	if m == nil {
		return
	}
	m.AssetJobs.WithLabelValues(result).Inc()
}
