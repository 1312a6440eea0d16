// Package metrics exposes Prometheus counters and histograms for the
// ingestion and retrieval paths, mounted at /metrics by cmd/server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reposearch_job_duration_seconds",
		Help:    "Duration of ingestion jobs by outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	RetrievalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reposearch_retrieval_duration_seconds",
		Help:    "Duration of retrieve() calls.",
		Buckets: prometheus.DefBuckets,
	})

	EmbeddingBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reposearch_embedding_batch_size",
		Help:    "Number of chunks per embedding batch.",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})

	WriteStrategyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reposearch_write_strategy_total",
		Help: "Count of vector store writes by chosen strategy.",
	}, []string{"strategy"})

	PipelineErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reposearch_pipeline_errors_total",
		Help: "Count of pipeline runs that terminated in an error event, by kind.",
	}, []string{"kind"})
)

// Register adds all collectors to reg. Called once at startup.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(JobDuration, RetrievalDuration, EmbeddingBatchSize, WriteStrategyTotal, PipelineErrorsTotal)
}
