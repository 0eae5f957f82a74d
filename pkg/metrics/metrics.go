package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// Domain metrics
	GradingTotal       *prometheus.CounterVec
	AssistantCalls     *prometheus.CounterVec
	RateLimitRejected  prometheus.Counter
	RecordsUploaded    prometheus.Counter
	AuditWriteFailures prometheus.Counter
}

// New creates and registers all application metrics on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of document store operations",
		}, []string{"collection", "operation", "status"}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of document store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"collection", "operation"}),

		GradingTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grading_total",
			Help:      "Total number of image gradings by grader and outcome",
		}, []string{"grader", "status"}),
		AssistantCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_calls_total",
			Help:      "Total number of generative-text calls by outcome",
		}, []string{"status"}),
		RateLimitRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Requests rejected by the edge rate limiter",
		}),
		RecordsUploaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_uploaded_total",
			Help:      "Medical images uploaded and graded",
		}),
		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit entries that could not be persisted",
		}),
	}
}

// ObserveStore records one store call. Call it deferred with the start time.
func (m *Metrics) ObserveStore(collection, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(collection, operation, status).Inc()
	m.StoreLatency.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
}
