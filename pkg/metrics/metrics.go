// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docgraph_documents_ingested_total",
		Help: "Documents successfully ingested, by classified domain.",
	}, []string{"domain"})

	ChunksStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docgraph_chunks_stored_total",
		Help: "Chunks written to the vector store.",
	})

	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docgraph_queries_total",
		Help: "Query requests, by outcome.",
	}, []string{"status"})

	Comparisons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docgraph_comparisons_total",
		Help: "Comparison requests, by outcome.",
	}, []string{"status"})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docgraph_llm_requests_total",
		Help: "LLM API calls, by operation and outcome.",
	}, []string{"op", "status"})

	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docgraph_llm_request_duration_seconds",
		Help:    "LLM API call latency, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	VectorSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docgraph_vector_search_duration_seconds",
		Help:    "Vector similarity search latency.",
		Buckets: prometheus.DefBuckets,
	})
)
