// Package telemetry holds the engine's Prometheus instruments. They are
// registered on the default registry and exposed through the server's
// /metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forensicflow_queries_total",
		Help: "Investigator queries processed, by terminal mode.",
	}, []string{"mode"})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forensicflow_query_duration_seconds",
		Help:    "Wall time of one query through the engine.",
		Buckets: prometheus.DefBuckets,
	})

	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forensicflow_tool_executions_total",
		Help: "Tool invocations, by tool name and outcome.",
	}, []string{"tool", "outcome"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forensicflow_query_cache_hits_total",
		Help: "Queries answered from the result cache.",
	})

	ProviderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forensicflow_provider_errors_total",
		Help: "Reasoning provider calls that returned an error.",
	})

	EvidenceIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forensicflow_evidence_ingested_total",
		Help: "Evidence items accepted by the normalizer.",
	})
)
