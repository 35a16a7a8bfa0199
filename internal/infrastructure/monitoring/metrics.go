package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glasspane/glasspane/internal/policy"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Policy metrics
	VerdictsTotal     *prometheus.CounterVec
	EnforcementPasses prometheus.Counter
	NodesSuppressed   *prometheus.CounterVec
	ClicksIntercepted prometheus.Counter

	// Gateway HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector on its own registry, so tests can
// construct as many as they need.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glasspane_verdicts_total",
				Help: "Request classification verdicts by action and rule kind",
			},
			[]string{"action", "kind"},
		),
		EnforcementPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "glasspane_enforcement_passes_total",
				Help: "Full enforcement passes over live documents",
			},
		),
		NodesSuppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glasspane_nodes_suppressed_total",
				Help: "UI controls suppressed per pass, by mode",
			},
			[]string{"mode"},
		),
		ClicksIntercepted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "glasspane_clicks_intercepted_total",
				Help: "Clicks swallowed by the capture-phase fallback",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glasspane_http_requests_total",
				Help: "Total number of gateway HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glasspane_http_request_duration_seconds",
				Help:    "Gateway HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glasspane_upstream_requests_total",
				Help: "Requests issued to the proxied site",
			},
			[]string{"method", "status"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "glasspane_ws_connections",
				Help: "Active event-stream connections",
			},
		),
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "glasspane_uptime_seconds",
				Help: "Gateway uptime in seconds",
			},
		),
	}

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestClassified implements the wire-path verdict reporter.
func (m *Metrics) RequestClassified(v policy.Verdict, method, url string) {
	m.VerdictsTotal.WithLabelValues(string(v.Action), string(v.Kind)).Inc()
}

// EnforcementPass implements the enforcer reporter.
func (m *Metrics) EnforcementPass(hidden, disabled int) {
	m.EnforcementPasses.Inc()
	m.NodesSuppressed.WithLabelValues(string(policy.ModeHide)).Add(float64(hidden))
	m.NodesSuppressed.WithLabelValues(string(policy.ModeDisable)).Add(float64(disabled))
}

// ClickIntercepted implements the enforcer reporter.
func (m *Metrics) ClickIntercepted(selector string) {
	m.ClicksIntercepted.Inc()
}

// UpstreamResponse records one call that reached the proxied site.
func (m *Metrics) UpstreamResponse(method string, status int) {
	m.UpstreamRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Middleware records gateway request metrics.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
