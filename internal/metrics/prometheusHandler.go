package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

// WriteHeader records the status before passing it on.
func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent in ProcessRequest.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	//dependencyLatency.WithLabelValues(label).Observe(time.Since(timeElapsed).Seconds())
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

var searchLegLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "search_leg_duration_seconds",
	Help:    "Latency of each retrieval leg.",
	Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
}, []string{"leg"})

var degradedSearches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "search_degraded_total",
	Help: "Searches that completed without one of their legs",
}, []string{"reason"})

var indexedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "indexer_chunks_total",
	Help: "Chunks processed by the indexer labelled by outcome",
}, []string{"outcome"})

var keywordIndexSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "keyword_index_chunks",
	Help: "Chunks held by the in-process keyword index",
})

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "memory_active_sessions",
	Help: "Sessions currently held by the memory manager",
})

var sessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "memory_session_events_total",
	Help: "Session memory evictions and expiries",
}, []string{"event"})

func CaptureSearchLeg(leg string, timeElapsed time.Duration) {
	searchLegLatency.WithLabelValues(leg).Observe(timeElapsed.Seconds())
}

func IncrementDegradedSearch(reason string) {
	degradedSearches.WithLabelValues(reason).Inc()
}

func AddIndexedChunks(outcome string, n int) {
	if n > 0 {
		indexedChunks.WithLabelValues(outcome).Add(float64(n))
	}
}

func SetKeywordIndexSize(n int) {
	keywordIndexSize.Set(float64(n))
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func AddSessionEvents(event string, n int) {
	if n > 0 {
		sessionEvents.WithLabelValues(event).Add(float64(n))
	}
}
