package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counters
	Queries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_assistant_queries_total",
			Help: "Total number of queries answered, by routed category",
		},
		[]string{"category"},
	)

	RouterUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gas_assistant_router_unmatched_total",
			Help: "Router labels outside the synonym table that fell back to qa",
		},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_assistant_fallbacks_total",
			Help: "Degraded answers, by level (responder, graph, unavailable)",
		},
		[]string{"level"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_assistant_llm_calls_total",
			Help: "Model calls, by outcome",
		},
		[]string{"outcome"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_assistant_tool_calls_total",
			Help: "Responder tool invocations, by tool name",
		},
		[]string{"tool"},
	)

	Documents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gas_assistant_documents_total",
			Help: "Ingested documents, by result (indexed, stored, rejected)",
		},
		[]string{"result"},
	)

	// Histograms
	LLMDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gas_assistant_llm_call_duration_seconds",
			Help:    "Model call duration distribution",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gas_assistant_search_duration_seconds",
			Help:    "Similarity search duration distribution",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
