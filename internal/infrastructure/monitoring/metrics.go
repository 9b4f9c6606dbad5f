package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics discards every record.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Coordination service metrics
	CoordinationCalls    *prometheus.CounterVec
	CoordinationDuration *prometheus.HistogramVec

	// Catalog metrics
	CatalogMutations    *prometheus.CounterVec
	CatalogRepositories prometheus.Gauge
	MirrorLookups       *prometheus.CounterVec
	MirrorRefreshes     *prometheus.CounterVec

	// Render metrics
	Renders        *prometheus.CounterVec
	RenderDuration prometheus.Histogram

	Uptime    prometheus.GaugeFunc
	startTime time.Time

	gatherer prometheus.Gatherer

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds running totals for the health endpoint.
type Snapshot struct {
	TotalRequests int64 `json:"total_requests"`
	TotalErrors   int64 `json:"total_errors"`
	Repositories  int64 `json:"repositories"`
}

// NewMetrics registers the collectors on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry registers the collectors on reg and serves them from gatherer.
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		gatherer:  gatherer,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgplane_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pkgplane_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pkgplane_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		CoordinationCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgplane_coordination_calls_total",
				Help: "Coordination service calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		CoordinationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pkgplane_coordination_duration_seconds",
				Help:    "Coordination service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"op"},
		),

		CatalogMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgplane_catalog_mutations_total",
				Help: "Repository catalog mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		CatalogRepositories: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pkgplane_catalog_repositories",
				Help: "Number of repositories in the last catalog snapshot",
			},
		),
		MirrorLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgplane_mirror_lookups_total",
				Help: "Cached catalog reads by result",
			},
			[]string{"result"},
		),
		MirrorRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgplane_mirror_refreshes_total",
				Help: "Catalog mirror refreshes by outcome",
			},
			[]string{"outcome"},
		),

		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgplane_renders_total",
				Help: "Package renders by outcome",
			},
			[]string{"outcome"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pkgplane_render_duration_seconds",
				Help:    "Package render duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pkgplane_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCoordinationCall records one coordination service call.
func (m *Metrics) RecordCoordinationCall(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CoordinationCalls.WithLabelValues(op, outcome).Inc()
	m.CoordinationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) RecordCatalogMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.CatalogMutations.WithLabelValues(op, outcome).Inc()
}

// SetCatalogRepositories sets the repository count of the latest snapshot.
func (m *Metrics) SetCatalogRepositories(count int) {
	if m == nil {
		return
	}
	m.CatalogRepositories.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Repositories = int64(count)
	m.mu.Unlock()
}

// RecordMirrorLookup records a cached read as a hit or a miss.
func (m *Metrics) RecordMirrorLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.MirrorLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordMirrorRefresh(outcome string) {
	if m == nil {
		return
	}
	m.MirrorRefreshes.WithLabelValues(outcome).Inc()
}

// RecordRender records a render attempt.
func (m *Metrics) RecordRender(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(outcome).Inc()
	m.RenderDuration.Observe(duration.Seconds())
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
