// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	PaymentSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_submissions_total",
			Help: "Payment submissions by outcome code (accepted or error code)",
		},
		[]string{"outcome"},
	)

	PaymentDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_decisions_total",
			Help: "Admin payment decisions by resulting status",
		},
		[]string{"status"},
	)

	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Application status transitions",
		},
		[]string{"from", "to"},
	)

	OpportunitiesClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opportunities_closed_total",
			Help: "Opportunities closed by the deadline sweep",
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events relayed, by result",
		},
		[]string{"event_type", "result"},
	)

	OutboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_events_due",
			Help: "Outbox events fetched in the last relay poll",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Open real-time connections",
		},
	)
)
