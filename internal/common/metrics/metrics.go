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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// CRM query pipeline.
var (
	CRMIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_intents_total",
			Help: "Intents produced by the pattern extractor, by kind (none when nothing matched)",
		},
		[]string{"kind"},
	)

	CRMResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_resolutions_total",
			Help: "Resolution results by kind and the field that matched",
		},
		[]string{"kind", "matched_by"},
	)

	CRMStoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_store_failures_total",
			Help: "Client store calls that failed and were treated as empty",
		},
		[]string{"operation"},
	)

	CRMCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_cache_requests_total",
			Help: "Client cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// Chat orchestrator.
var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat requests by final stream status",
		},
		[]string{"status"},
	)

	ChatRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "Time from request receipt to the end of the token stream",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	ChatPersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_persistence_failures_total",
			Help: "Detached persistence tasks that failed, by message role",
		},
		[]string{"role"},
	)

	ChatPersistenceDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persistence_dropped_total",
			Help: "Persistence tasks dropped because the queue was full or closed",
		},
	)
)
