package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	quizGradedTotal       *prometheus.CounterVec
	quizGradingSeconds    prometheus.Histogram
	videoScoredTotal      *prometheus.CounterVec
	selectionRunsTotal    *prometheus.CounterVec
	selectionSelected     prometheus.Gauge
	ledgerConflictsTotal  *prometheus.CounterVec
	resultEventsPublished *prometheus.CounterVec
	selectionCacheLookups *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the assessment API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_requests_total",
			Help: "Total number of assessment API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assessment_latency_seconds",
			Help:    "Latency distribution for assessment API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_errors_total",
			Help: "Total number of error responses returned by assessment endpoints.",
		}, []string{"method", "route", "status"})

		quizGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempts_graded_total",
			Help: "Quiz attempts graded, labelled by outcome.",
		}, []string{"outcome"})

		quizGradingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_grading_seconds",
			Help:    "Time spent grading and committing a quiz attempt.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		})

		videoScoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "video_submissions_scored_total",
			Help: "Video submissions processed, labelled by outcome.",
		}, []string{"outcome"})

		selectionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selection_runs_total",
			Help: "Selection runs executed, labelled by mode and outcome.",
		}, []string{"mode", "outcome"})

		selectionSelected = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selection_selected_students",
			Help: "Number of students selected by the latest run.",
		})

		ledgerConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_conflicts_total",
			Help: "Concurrent modification conflicts raised by the result ledger.",
		}, []string{"operation"})

		resultEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "result_events_published_total",
			Help: "Result notifications published to the event bus.",
		}, []string{"type"})

		selectionCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selection_cache_lookups_total",
			Help: "Latest selection cache lookups, labelled hit or miss.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			quizGradedTotal, quizGradingSeconds, videoScoredTotal,
			selectionRunsTotal, selectionSelected, ledgerConflictsTotal,
			resultEventsPublished, selectionCacheLookups,
		)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the error response counter.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// QuizGraded counts graded attempts by outcome.
func QuizGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return quizGradedTotal
}

// QuizGradingDuration observes grading latency.
func QuizGradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return quizGradingSeconds
}

// VideoScored counts processed video submissions by outcome.
func VideoScored() *prometheus.CounterVec {
	RegisterMetrics()
	return videoScoredTotal
}

// SelectionRuns counts selection runs.
func SelectionRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return selectionRunsTotal
}

// SelectionSelected tracks the size of the latest selected set.
func SelectionSelected() prometheus.Gauge {
	RegisterMetrics()
	return selectionSelected
}

// LedgerConflicts counts concurrency conflicts by operation.
func LedgerConflicts() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerConflictsTotal
}

// ResultEventsPublished counts outbound result notifications.
func ResultEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return resultEventsPublished
}

// SelectionCacheLookups counts latest-run cache hits and misses.
func SelectionCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return selectionCacheLookups
}
