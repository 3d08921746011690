package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for notifyd
type Metrics struct {
	// Gateway client
	GatewayRequestsTotal *prometheus.CounterVec
	GatewayFailuresTotal *prometheus.CounterVec

	// Remote snapshot cache
	SnapshotRefreshTotal *prometheus.CounterVec

	// Override store
	StoreWritesTotal *prometheus.CounterVec

	// Template lifecycle
	TemplatesCreatedTotal   prometheus.Counter
	TemplatesActivatedTotal prometheus.Counter

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	// System metrics
	UptimeSeconds prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifyd_gateway_requests_total",
				Help: "Total number of Remote Sync Gateway requests",
			},
			[]string{"operation"},
		),
		GatewayFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifyd_gateway_failures_total",
				Help: "Total number of failed Remote Sync Gateway requests",
			},
			[]string{"operation", "reason"},
		),
		SnapshotRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifyd_snapshot_refresh_total",
				Help: "Total number of remote status snapshot refreshes",
			},
			[]string{"outcome"},
		),
		StoreWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifyd_store_writes_total",
				Help: "Total number of override store writes",
			},
			[]string{"record"},
		),
		TemplatesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notifyd_templates_created_total",
				Help: "Total number of templates created through the dashboard",
			},
		),
		TemplatesActivatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notifyd_templates_activated_total",
				Help: "Total number of template activations",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifyd_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notifyd_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifyd_uptime_seconds",
				Help: "Time since the process started",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.GatewayRequestsTotal,
		m.GatewayFailuresTotal,
		m.SnapshotRefreshTotal,
		m.StoreWritesTotal,
		m.TemplatesCreatedTotal,
		m.TemplatesActivatedTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.UptimeSeconds,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
