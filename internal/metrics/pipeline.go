package metrics

import "github.com/prometheus/client_golang/prometheus"

// Context pipeline Prometheus metrics.
var (
	TermExtractionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "term_extraction_failures_total",
			Help:      "Term extraction passes that failed and contributed no terms",
		},
		[]string{"source"}, // "query" / "user" / "assistant"
	)

	TermsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "terms_dropped_total",
			Help:      "Search terms dropped by the per-request term cap",
		},
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragpack",
			Name:      "retrieval_duration_seconds",
			Help:      "Hybrid retrieval duration in seconds, including query embedding",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)

	RetrievalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "retrieval_errors_total",
			Help:      "Retrieval failures that degraded a turn to no context",
		},
		[]string{"stage"}, // "embed" / "request" / "search"
	)

	ScopeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "scope_decisions_total",
			Help:      "Scope gate outcomes",
		},
		[]string{"outcome", "reason"},
	)

	PackedTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragpack",
			Name:      "packed_context_tokens",
			Help:      "Tokens used by the packed context block",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 10),
		},
	)

	PackedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragpack",
			Name:      "packed_context_chunks",
			Help:      "Chunks added to the packed context block",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	PackSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "pack_skipped_total",
			Help:      "Turns that produced no context block",
		},
		[]string{"reason"},
	)

	MemoryLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "memory_lookups_total",
			Help:      "Fact store lookups by result",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "completions_total",
			Help:      "Chat completions by status",
		},
		[]string{"status"}, // "ok" / "error" / "out_of_scope"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers context pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		TermExtractionFailuresTotal,
		TermsDroppedTotal,
		RetrievalDuration,
		RetrievalErrorsTotal,
		ScopeDecisionsTotal,
		PackedTokens,
		PackedChunks,
		PackSkippedTotal,
		MemoryLookupsTotal,
		CompletionsTotal,
	)
	pipelineMetricsRegistered = true
}
