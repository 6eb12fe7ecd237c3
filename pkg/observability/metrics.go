package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Tenant resolution metrics
	TenantResolutionsTotal  *prometheus.CounterVec
	DefaultWorkspaceWrites  prometheus.Counter

	// Permission metrics
	RoleChecksTotal    *prometheus.CounterVec
	RoleCheckDuration  *prometheus.HistogramVec
	RoleCacheHitsTotal prometheus.Counter
	RoleCacheMissTotal prometheus.Counter

	// Hierarchy metrics
	CascadeDeletesTotal    prometheus.Counter
	CascadeDeletedEntities *prometheus.CounterVec
	DirectoryMovesTotal    *prometheus.CounterVec

	// Link metrics
	LinkRotationsTotal prometheus.Counter
	LinkResolvesTotal  *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inkwell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TenantResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_tenant_resolutions_total",
				Help: "Tenant context resolutions by outcome",
			},
			[]string{"outcome"},
		),
		DefaultWorkspaceWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_default_workspace_writes_total",
				Help: "Default-workspace write-backs performed by the resolver",
			},
		),
		RoleChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_role_checks_total",
				Help: "Role resolutions by resource type and resolved role",
			},
			[]string{"resource_type", "role"},
		),
		RoleCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inkwell_role_check_duration_seconds",
				Help:    "Role resolution duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"resource_type"},
		),
		RoleCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_role_cache_hits_total",
				Help: "Role cache hits",
			},
		),
		RoleCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_role_cache_misses_total",
				Help: "Role cache misses",
			},
		),
		CascadeDeletesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_cascade_deletes_total",
				Help: "Cascading directory deletions",
			},
		),
		CascadeDeletedEntities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_cascade_deleted_entities_total",
				Help: "Entities removed by cascading deletions",
			},
			[]string{"entity"},
		),
		DirectoryMovesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_directory_moves_total",
				Help: "Directory move operations by outcome",
			},
			[]string{"outcome"},
		),
		LinkRotationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_link_rotations_total",
				Help: "Share link creations and rotations",
			},
		),
		LinkResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_link_resolves_total",
				Help: "Share link resolutions by outcome",
			},
			[]string{"outcome"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inkwell_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inkwell_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TenantResolutionsTotal,
		m.DefaultWorkspaceWrites,
		m.RoleChecksTotal,
		m.RoleCheckDuration,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissTotal,
		m.CascadeDeletesTotal,
		m.CascadeDeletedEntities,
		m.DirectoryMovesTotal,
		m.LinkRotationsTotal,
		m.LinkResolvesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status code for instrumentation
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments request counts and latencies. The path label
// uses the raw URL path of the matched route; callers mounting this behind
// gorilla/mux get the route template via CurrentRoute in their own handlers
// if finer cardinality control is needed.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
