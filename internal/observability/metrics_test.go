package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEngineCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.ObserveTransition("Approve", "accepted", 15*time.Millisecond)
	metrics.ObserveTransition("approve", "denied", time.Millisecond)
	metrics.IncBulkItem("authorize_payment", "failed")
	metrics.IncBulkInFlight("authorize_payment")
	metrics.DecBulkInFlight("authorize_payment")
	metrics.IncAuditSinkFailure("rabbitmq")
	metrics.IncAuditRecordPersisted("denied")
	metrics.IncRateLimited("")

	if got := testutil.ToFloat64(metrics.transitionsTotal.WithLabelValues("approve", "accepted")); got != 1 {
		t.Fatalf("claim_transitions_total{accepted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.transitionsTotal.WithLabelValues("approve", "denied")); got != 1 {
		t.Fatalf("claim_transitions_total{denied} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.bulkItemsTotal.WithLabelValues("authorize_payment", "failed")); got != 1 {
		t.Fatalf("bulk_items_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.bulkInflight.WithLabelValues("authorize_payment")); got != 0 {
		t.Fatalf("bulk_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.auditSinkFailuresTotal.WithLabelValues("rabbitmq")); got != 1 {
		t.Fatalf("audit_sink_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.auditRecordsPersisted.WithLabelValues("denied")); got != 1 {
		t.Fatalf("audit_records_persisted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.rateLimitedRequestTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("rate_limited_requests_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.ObserveTransition("approve", "accepted", time.Millisecond)
	metrics.IncBulkItem("approve", "succeeded")
	metrics.IncAuditSinkFailure("redis")
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
