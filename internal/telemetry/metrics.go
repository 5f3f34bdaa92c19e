// Package telemetry provides application-level observability for the Scholaris
// backend: the global slog logger and the Prometheus metrics served on a
// dedicated side-channel port (default 9090, configurable via
// SIS_TELEMETRY_METRICS_PROMETHEUS_PORT). The metrics endpoint is not part of
// the Gin router and is therefore never behind the API's auth or rate limiting.
//
// HTTP metrics use the Gin route template (c.FullPath(), e.g.
// /api/v1/audit/actors/:id) rather than the raw URL so user-supplied path
// segments cannot inflate label cardinality.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit trail metrics. Write failures are counted rather than surfaced because
// the recorder deliberately swallows them; this counter is the operational
// signal that audit persistence is degrading.
var (
	AuditEntriesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_written_total",
			Help: "Total number of audit trail entries persisted, by category and action.",
		},
		[]string{"category", "action"},
	)

	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit writes that failed and were swallowed by the recorder.",
		},
	)

	AuditShipFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_ship_failures_total",
			Help: "Total number of failed deliveries to external audit destinations, by shipper type.",
		},
		[]string{"shipper"},
	)
)

// Database connection pool gauges, polled by StartDBStatsCollector.
var (
	dbOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections (in use + idle).",
	})
	dbInUseConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_in_use_connections",
		Help: "Current number of database connections in use.",
	})
	dbWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_wait_count_total",
		Help: "Cumulative number of times a connection had to be waited for.",
	})
)

// StartDBStatsCollector begins exporting database/sql pool statistics every
// 30 seconds for the lifetime of the process.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			dbOpenConnections.Set(float64(stats.OpenConnections))
			dbInUseConnections.Set(float64(stats.InUse))
			dbWaitCount.Set(float64(stats.WaitCount))
		}
	}()
	slog.Debug("database pool stats collector started")
}
