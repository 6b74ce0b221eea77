package metrics

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependency labels for latency histograms.
const (
	DependencyDB          = "db"
	DependencyObjectStore = "object_store"
	DependencyQueue       = "queue"
	DependencyAnalyzer    = "analyzer"
	DependencyLLM         = "llm"
)

var (
	registry = prometheus.NewRegistry()

	analysisStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses moved to RUNNING",
	})
	analysisCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_completed_total",
		Help: "Total analyses finished with SUCCESS",
	})
	analysisFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_failed_total",
		Help: "Total analyses finished with FAILED",
	})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_seconds",
		Help:    "Analysis processing duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300, 900},
	})

	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_total",
		Help: "Job attempts by kind and outcome",
	}, []string{"kind", "outcome"})
	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Sampled queue depth by state",
	}, []string{"state"})

	dependencyLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dependency_latency_seconds",
		Help:    "Latency of calls to external dependencies",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"dependency", "operation"})

	coverageIngestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_ingest_total",
		Help: "Coverage ingestion attempts by format and result",
	}, []string{"format", "result"})
)

func init() {
	registry.MustRegister(
		analysisStartedTotal,
		analysisCompletedTotal,
		analysisFailedTotal,
		analysisDuration,
		jobsTotal,
		queueDepth,
		dependencyLatency,
		coverageIngestTotal,
	)
}

// Registry exposes the private registry, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Inc()
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Inc()
}

// ObserveAnalysisDuration records an analysis duration.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDuration.Observe(d.Seconds())
}

// IncJob records a job attempt outcome (completed, retried, failed).
func IncJob(kind, outcome string) {
	jobsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetQueueDepth sets the depth gauge for a queue state.
func SetQueueDepth(state string, value float64) {
	queueDepth.WithLabelValues(state).Set(value)
}

// ObserveDependency records the latency of a dependency call.
func ObserveDependency(dependency, operation string, started time.Time) {
	dependencyLatency.WithLabelValues(dependency, operation).Observe(time.Since(started).Seconds())
}

// IncCoverageIngest records a coverage ingestion result (ok, invalid, error).
func IncCoverageIngest(format, result string) {
	coverageIngestTotal.WithLabelValues(format, result).Inc()
}

// RegisterDBStats exports connection pool statistics for db. Registering a
// second pool under the same name is a no-op.
func RegisterDBStats(db *sql.DB, name string) error {
	err := registry.Register(collectors.NewDBStatsCollector(db, name))
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		return nil
	}
	return err
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
