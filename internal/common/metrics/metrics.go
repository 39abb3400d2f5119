// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_recompute_tasks_completed_total",
			Help: "Total number of recomputation tasks completed",
		},
		[]string{"scope_kind"},
	)

	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_recompute_tasks_failed_total",
			Help: "Total number of recomputation task attempts that failed",
		},
		[]string{"scope_kind", "error_code", "final"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_recompute_task_duration_seconds",
			Help:    "Duration of a single recomputation task",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope_kind"},
	)

	ScoresWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_scores_written_total",
			Help: "Total number of match score records written",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_processor_run_duration_seconds",
			Help:    "Duration of a queue processor run",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
	)

	RunsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_processor_runs_skipped_total",
			Help: "Scheduler ticks skipped because a run was still in progress",
		},
	)

	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_recompute_tasks_enqueued_total",
			Help: "Tasks enqueued by trigger",
		},
		[]string{"trigger"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "match_recompute_queue_depth",
			Help: "Tasks in the recomputation queue by status",
		},
		[]string{"status"},
	)

	ProfileCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_profile_cache_requests_total",
			Help: "Profile snapshot cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)
)
