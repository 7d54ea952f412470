package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the reading log service.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	SavesTotal         *prometheus.CounterVec
	ListRequestsTotal  *prometheus.CounterVec
	TokensIssuedTotal  prometheus.Counter
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
	SchemaReady        prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all metrics on a private registry
// alongside the Go runtime and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		SavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readinglog_saves_total",
				Help: "Total number of save requests by result",
			},
			[]string{"result"},
		),

		ListRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readinglog_list_requests_total",
				Help: "Total number of history requests by result",
			},
			[]string{"result"},
		),

		TokensIssuedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "readinglog_tokens_issued_total",
				Help: "Total number of tokens issued to new readers",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readinglog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "readinglog_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		SchemaReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "readinglog_schema_ready",
				Help: "1 when the log table schema is usable, 0 while degraded",
			},
		),
	}
}

// Registry returns the registry the metrics were registered on.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSave implements readinglog.Recorder.
func (m *PrometheusMetrics) ObserveSave(result string) {
	m.SavesTotal.WithLabelValues(result).Inc()
}

// ObserveList implements readinglog.Recorder.
func (m *PrometheusMetrics) ObserveList(result string) {
	m.ListRequestsTotal.WithLabelValues(result).Inc()
}

// TokenIssued counts a freshly issued reader token.
func (m *PrometheusMetrics) TokenIssued() {
	m.TokensIssuedTotal.Inc()
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path, so label cardinality stays bounded.
func (m *PrometheusMetrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetSchemaReady mirrors the schema readiness state.
func (m *PrometheusMetrics) SetSchemaReady(ready bool) {
	if ready {
		m.SchemaReady.Set(1)
		return
	}
	m.SchemaReady.Set(0)
}

// RegisterPoolStats exposes connection pool counters read from stats on
// every scrape.
func (m *PrometheusMetrics) RegisterPoolStats(stats func() sql.DBStats) {
	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "readinglog_db_open_connections",
		Help: "Number of established database connections",
	}, func() float64 { return float64(stats().OpenConnections) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "readinglog_db_in_use_connections",
		Help: "Number of database connections currently in use",
	}, func() float64 { return float64(stats().InUse) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "readinglog_db_wait_total",
		Help: "Total number of waits for a free database connection",
	}, func() float64 { return float64(stats().WaitCount) })
}
