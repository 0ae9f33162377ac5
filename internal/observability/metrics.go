package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API, engine and audit worker.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	transitionsTotal        *prometheus.CounterVec
	transitionDuration      *prometheus.HistogramVec
	bulkItemsTotal          *prometheus.CounterVec
	bulkInflight            *prometheus.GaugeVec
	auditSinkFailuresTotal  *prometheus.CounterVec
	auditRecordsPersisted   *prometheus.CounterVec
	rateLimitedRequestTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claim_workflow",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "claim_workflow",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claim_workflow",
				Name:      "claim_transitions_total",
				Help:      "Total number of transition requests by transition and outcome.",
			},
			[]string{"transition", "outcome"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "claim_workflow",
				Name:      "claim_transition_duration_seconds",
				Help:      "Time spent handling a single transition request, store round trips included.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"transition"},
		),
		bulkItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claim_workflow",
				Name:      "bulk_items_total",
				Help:      "Total number of bulk transition items by transition and outcome.",
			},
			[]string{"transition", "outcome"},
		),
		bulkInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "claim_workflow",
				Name:      "bulk_inflight",
				Help:      "Current number of bulk items being processed grouped by transition.",
			},
			[]string{"transition"},
		),
		auditSinkFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claim_workflow",
				Name:      "audit_sink_failures_total",
				Help:      "Total number of audit records a sink failed to accept.",
			},
			[]string{"sink"},
		),
		auditRecordsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claim_workflow",
				Name:      "audit_records_persisted_total",
				Help:      "Total number of transition attempts written to the security log by outcome.",
			},
			[]string{"outcome"},
		),
		rateLimitedRequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claim_workflow",
				Name:      "rate_limited_requests_total",
				Help:      "Total number of requests rejected by the per-actor limiter grouped by role.",
			},
			[]string{"role"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.transitionsTotal,
		m.transitionDuration,
		m.bulkItemsTotal,
		m.bulkInflight,
		m.auditSinkFailuresTotal,
		m.auditRecordsPersisted,
		m.rateLimitedRequestTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveTransition(transition string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	transitionLabel := normalizeLabel(transition)
	m.transitionsTotal.WithLabelValues(transitionLabel, normalizeLabel(outcome)).Inc()

	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.transitionDuration.WithLabelValues(transitionLabel).Observe(seconds)
}

func (m *Metrics) IncBulkItem(transition string, outcome string) {
	if m == nil {
		return
	}
	m.bulkItemsTotal.WithLabelValues(normalizeLabel(transition), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncBulkInFlight(transition string) {
	if m == nil {
		return
	}
	m.bulkInflight.WithLabelValues(normalizeLabel(transition)).Inc()
}

func (m *Metrics) DecBulkInFlight(transition string) {
	if m == nil {
		return
	}
	m.bulkInflight.WithLabelValues(normalizeLabel(transition)).Dec()
}

func (m *Metrics) IncAuditSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.auditSinkFailuresTotal.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *Metrics) IncAuditRecordPersisted(outcome string) {
	if m == nil {
		return
	}
	m.auditRecordsPersisted.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncRateLimited(role string) {
	if m == nil {
		return
	}
	m.rateLimitedRequestTotal.WithLabelValues(normalizeLabel(role)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
