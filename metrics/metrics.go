package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casetrack_operations_total",
			Help: "Total number of business operations executed",
		},
		[]string{"entity", "operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "casetrack_operation_duration_seconds",
			Help:    "Time taken to execute business operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casetrack_access_denials_total",
			Help: "Total number of denied authorization decisions",
		},
		[]string{"reason"},
	)

	HookFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casetrack_hook_failures_total",
			Help: "Total number of hook invocation failures",
		},
		[]string{"entity", "event", "phase"},
	)

	ActivityRecordFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casetrack_activity_record_failures_total",
			Help: "Total number of activity entries that could not be recorded",
		},
	)

	ActivityPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casetrack_activity_publish_failures_total",
			Help: "Total number of activity entries that could not be published to the stream",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casetrack_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casetrack_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)
