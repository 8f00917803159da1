package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestAttempts tracks physical attempts per method and outcome
	RequestAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiguard_request_attempts_total",
			Help: "Total number of physical request attempts",
		},
		[]string{"method", "outcome"},
	)

	// Retries tracks retry decisions per method
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiguard_retries_total",
			Help: "Total number of retries scheduled",
		},
		[]string{"method"},
	)

	// CallLatency tracks wall-clock time of whole logical calls
	CallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apiguard_call_duration_seconds",
			Help:    "Duration of logical calls including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "result"},
	)

	// ErrorsTotal mirrors the error counters by code and status
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiguard_errors_total",
			Help: "Total number of normalized errors",
		},
		[]string{"code", "status"},
	)

	// ForcedLogouts tracks session teardowns triggered by failures
	ForcedLogouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiguard_forced_logouts_total",
			Help: "Total number of forced logouts",
		},
		[]string{"reason"},
	)

	// TeardownStepFailures tracks teardown steps that failed and were skipped
	TeardownStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiguard_teardown_step_failures_total",
			Help: "Total number of failed teardown steps",
		},
		[]string{"step"},
	)

	// DBConnectionPoolUsage tracks the percentage of open cache database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apiguard_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)
)
