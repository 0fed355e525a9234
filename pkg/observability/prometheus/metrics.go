// Package prometheus wires the gateway's runtime behavior into
// client_golang metrics: HTTP request outcomes, the supervisor's own
// lifecycle events (respawn, watchdog timeout), the audit sink's
// connection pool occupancy, and the rate limiter's rejection count. The
// gateway exposes these at /metrics via promhttp.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "procmesh"}, DefaultRegistry)

	// Metrics collection
	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds every Prometheus collector the gateway exercises.
type Metrics struct {
	// HTTP request metrics - recorded by RecordHTTPRequest once per /call
	// request that reaches its RemoteCall; /auth/login and /call requests
	// rejected before the RemoteCall are not recorded here.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Supervisor lifecycle metrics - one counter per pkg/core.EventKind
	// the supervisor broadcasts (worker_respawned, worker_watchdog_timeout),
	// and a gauge tracking how many workers are currently registered.
	SupervisorEventsTotal *prometheus.CounterVec
	WorkerCount           prometheus.Gauge

	// Audit pool metrics - internal/audit.Sink.Health reports these after
	// every /healthz call.
	AuditPoolOpen  prometheus.Gauge
	AuditPoolIdle  prometheus.Gauge
	AuditPoolInUse prometheus.Gauge

	// Gateway request-shedding metrics.
	RateLimitRejectedTotal *prometheus.CounterVec
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		HTTPRequestsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "procmesh_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procmesh_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procmesh_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procmesh_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
			},
			[]string{"method", "path", "status"},
		),

		SupervisorEventsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "procmesh_supervisor_events_total",
				Help: "Total number of supervisor lifecycle events, by kind (worker_respawned, worker_watchdog_timeout)",
			},
			[]string{"kind"},
		),
		WorkerCount: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "procmesh_worker_count",
				Help: "Number of workers currently registered with the supervisor",
			},
		),

		AuditPoolOpen: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "procmesh_audit_pool_connections_open",
				Help: "Number of open connections in the audit sink's database pool",
			},
		),
		AuditPoolIdle: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "procmesh_audit_pool_connections_idle",
				Help: "Number of idle connections in the audit sink's database pool",
			},
		),
		AuditPoolInUse: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "procmesh_audit_pool_connections_in_use",
				Help: "Number of in-use connections in the audit sink's database pool",
			},
		),

		RateLimitRejectedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "procmesh_rate_limit_rejected_total",
				Help: "Total number of /call requests rejected by the per-identity rate limiter",
			},
			[]string{"identity"},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}

// RecordSupervisorEvent records one supervisor lifecycle event (respawn or
// watchdog timeout), fed by a goroutine draining core.Service.Subscribe.
func (m *Metrics) RecordSupervisorEvent(kind string) {
	m.SupervisorEventsTotal.WithLabelValues(kind).Inc()
}

// UpdateWorkerCount sets the currently-registered worker gauge.
func (m *Metrics) UpdateWorkerCount(n int) {
	m.WorkerCount.Set(float64(n))
}

// UpdateAuditPool updates the audit sink's connection pool gauges.
func (m *Metrics) UpdateAuditPool(open, idle, inUse int) {
	m.AuditPoolOpen.Set(float64(open))
	m.AuditPoolIdle.Set(float64(idle))
	m.AuditPoolInUse.Set(float64(inUse))
}

// RecordRateLimitRejected records one request dropped by the per-identity
// rate limiter before it ever reached a RemoteCall.
func (m *Metrics) RecordRateLimitRejected(identity string) {
	m.RateLimitRejectedTotal.WithLabelValues(identity).Inc()
}
