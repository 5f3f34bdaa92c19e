package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gather returns the metric family with the given name from the default registry.
func gather(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestAuditMetricsAreRegistered(t *testing.T) {
	AuditEntriesWrittenTotal.WithLabelValues("user", "INSERT").Inc()
	AuditWriteFailuresTotal.Inc()
	AuditShipFailuresTotal.WithLabelValues("webhook").Inc()

	for _, name := range []string{
		"audit_entries_written_total",
		"audit_write_failures_total",
		"audit_ship_failures_total",
	} {
		if gather(t, name) == nil {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestHTTPMetricsAreRegistered(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/audit", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/v1/audit").Observe(0.01)

	mf := gather(t, "http_requests_total")
	if mf == nil {
		t.Fatal("http_requests_total not registered")
	}
	if len(mf.GetMetric()) == 0 {
		t.Error("http_requests_total has no samples")
	}
}
