// Package metrics registers the application's prometheus collectors once at
// init; all packages increment the shared package-level counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lifeflow"

var (
	// Workflow metrics
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_transitions_total",
		Help:      "Total number of blood request status transitions",
	}, []string{"from", "to"})

	OptInsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "opt_ins_created_total",
		Help:      "Total number of donor opt-ins created",
	})

	OptInsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "opt_ins_rejected_total",
		Help:      "Total number of rejected opt-in attempts",
	}, []string{"reason"})

	CertificatesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certificates_issued_total",
		Help:      "Total number of certificates created",
	})

	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_failures_total",
		Help:      "Total number of best-effort fan-out failures",
	}, []string{"channel"})

	// Outbox metrics
	OutboxEventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_processed_total",
		Help:      "Total number of successfully processed outbox events",
	})

	OutboxEventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_failed_total",
		Help:      "Total number of failed outbox events",
	})

	OutboxProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_processing_duration_seconds",
		Help:      "Time spent processing outbox events",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	// Database metrics
	DatabaseOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "database_operations_total",
		Help:      "Total number of database operations",
	}, []string{"operation", "status"})

	// HTTP metrics, observed by the router middleware.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, path and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
