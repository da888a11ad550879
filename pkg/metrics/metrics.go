// Package metrics holds the Prometheus collectors shared by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphGeneration tracks the generation of the published snapshot
	GraphGeneration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "depgraph_graph_generation",
		Help: "Generation of the published graph snapshot",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "depgraph_graph_nodes",
		Help: "Number of analyzed nodes in the published snapshot",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "depgraph_graph_edges",
		Help: "Number of dependency edges in the published snapshot",
	})

	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "depgraph_builds_total",
		Help: "Builds by mode and outcome",
	}, []string{"mode", "outcome"})

	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depgraph_build_duration_seconds",
		Help:    "Time spent applying extraction results to the graph",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"mode"})

	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depgraph_extraction_failures_total",
		Help: "Extraction results that carried an error",
	})

	ExtractionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depgraph_extraction_cache_hits_total",
		Help: "Extraction cache hits",
	})

	ExtractionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depgraph_extraction_cache_misses_total",
		Help: "Extraction cache misses",
	})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depgraph_query_duration_seconds",
		Help:    "Query latency by kind",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"kind"})

	CycleAnalyses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depgraph_cycle_analyses_total",
		Help: "Strongly connected component analyses run (cache misses)",
	})

	RuleClassifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depgraph_rule_classifications_total",
		Help: "Edge classifications computed (cache misses)",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "depgraph_http_requests_total",
		Help: "HTTP API requests by status code and method",
	}, []string{"code", "method"})

	// WatchBatches counts debounced change batches by the build they triggered
	WatchBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "depgraph_watch_batches_total",
		Help: "Debounced input change batches by triggered build mode",
	}, []string{"mode"})
)
