package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle engine metrics
	OptionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionvault_operations_total",
			Help: "Total number of option lifecycle operations",
		},
		[]string{"operation", "status"}, // operation: mint|transfer|exercise|cancel|expire, status: success|error
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optionvault_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	// Ledger metrics
	LedgerTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionvault_ledger_transfers_total",
			Help: "Total number of ledger transfers issued by the engine",
		},
		[]string{"status"}, // status: success|error
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionvault_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optionvault_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	ExpiredContractsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optionvault_expired_contracts_swept_total",
			Help: "Total number of contracts expired by the sweep worker",
		},
	)

	// Event metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionvault_events_published_total",
			Help: "Total number of lifecycle events published",
		},
		[]string{"event", "status"},
	)
)

func init() {
	prometheus.MustRegister(OptionOperations)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(LedgerTransfers)
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(ExpiredContractsSwept)
	prometheus.MustRegister(EventsPublished)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records metrics for a worker run
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}
