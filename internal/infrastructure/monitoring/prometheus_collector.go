package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the recorder interfaces of the booth
// services on top of prometheus collectors.
type PrometheusCollector struct {
	// Counters
	capturesTotal       *prometheus.CounterVec
	cameraRestartsTotal *prometheus.CounterVec
	exportsTotal        *prometheus.CounterVec
	geocodeTotal        *prometheus.CounterVec
	loginsTotal         *prometheus.CounterVec

	previewConnections prometheus.Gauge
	captureSessions    prometheus.Gauge

	// Histograms
	httpDuration   *prometheus.HistogramVec
	exportDuration prometheus.Histogram
}

// NewPrometheusCollector registers the booth metrics with reg. A nil reg
// uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		capturesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booth_captures_total",
			Help: "Photos captured, by tenant and outcome",
		}, []string{"tenant_id", "outcome"}),

		cameraRestartsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booth_camera_restarts_total",
			Help: "Camera restarts after a retake, by tenant and outcome",
		}, []string{"tenant_id", "outcome"}),

		exportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booth_exports_total",
			Help: "Composite exports, by tenant, delivery and outcome",
		}, []string{"tenant_id", "disposition", "outcome"}),

		geocodeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booth_geocode_requests_total",
			Help: "Reverse geocoding lookups by outcome (hit, ok, failed)",
		}, []string{"outcome"}),

		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booth_logins_total",
			Help: "Login attempts by store (user, tenant_admin) and outcome",
		}, []string{"store", "outcome"}),

		previewConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "booth_preview_connections",
			Help: "Open preview websocket connections",
		}),

		captureSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "booth_capture_sessions",
			Help: "Capture sessions currently held in memory",
		}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booth_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),

		exportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "booth_export_duration_seconds",
			Help:    "Time spent compositing and encoding an export",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
}

func (p *PrometheusCollector) RecordCapture(tenantID, outcome string) {
	p.capturesTotal.WithLabelValues(tenantID, outcome).Inc()
}

func (p *PrometheusCollector) RecordCameraRestart(tenantID, outcome string) {
	p.cameraRestartsTotal.WithLabelValues(tenantID, outcome).Inc()
}

func (p *PrometheusCollector) RecordExport(tenantID, disposition, outcome string) {
	p.exportsTotal.WithLabelValues(tenantID, disposition, outcome).Inc()
}

func (p *PrometheusCollector) RecordExportDuration(d time.Duration) {
	p.exportDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordGeocode(outcome string) {
	p.geocodeTotal.WithLabelValues(outcome).Inc()
}

// RecordLogin counts a login attempt of store, which is "user" or
// "tenant_admin".
func (p *PrometheusCollector) RecordLogin(store string, success bool) {
	outcome := "failed"
	if success {
		outcome = "ok"
	}
	p.loginsTotal.WithLabelValues(store, outcome).Inc()
}

func (p *PrometheusCollector) PreviewConnected() {
	p.previewConnections.Inc()
}

func (p *PrometheusCollector) PreviewDisconnected() {
	p.previewConnections.Dec()
}

func (p *PrometheusCollector) SetCaptureSessions(n int) {
	p.captureSessions.Set(float64(n))
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
