package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthEvents      *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_events_total",
				Help: "Authentication events by outcome.",
			},
			[]string{"event", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.AuthEvents,
	)
	return m
}

// ObserveRequest is safe on a nil receiver so tests can skip metrics.
func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.RequestCount.WithLabelValues(method, route, code).Inc()
	m.RequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

func (m *Metrics) AuthEvent(event string, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// WatchPool exports connection pool gauges read from stats at scrape time.
func (m *Metrics) WatchPool(stats func() (total int32, acquired int32, idle int32)) {
	if m == nil || stats == nil {
		return
	}

	read := func(pick func(total int32, acquired int32, idle int32) int32) func() float64 {
		return func() float64 {
			return float64(pick(stats()))
		}
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "db_pool_connections",
			Help:        "Database pool connections by state.",
			ConstLabels: prometheus.Labels{"state": "total"},
		}, read(func(total int32, _ int32, _ int32) int32 { return total })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "db_pool_connections",
			Help:        "Database pool connections by state.",
			ConstLabels: prometheus.Labels{"state": "acquired"},
		}, read(func(_ int32, acquired int32, _ int32) int32 { return acquired })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "db_pool_connections",
			Help:        "Database pool connections by state.",
			ConstLabels: prometheus.Labels{"state": "idle"},
		}, read(func(_ int32, _ int32, idle int32) int32 { return idle })),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
