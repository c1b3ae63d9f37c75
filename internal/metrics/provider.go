package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider operations, used as the "operation" label.
const (
	OpEmbedding  = "embedding"
	OpExtraction = "extraction"
	OpCompletion = "completion"
)

// Model provider Prometheus metrics, shared by embeddings, term extraction and completions.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "provider_requests_total",
			Help:      "Total number of model provider requests",
		},
		[]string{"provider", "model", "operation", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragpack",
			Name:      "provider_request_duration_seconds",
			Help:      "Successful model provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model", "operation"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed at model providers",
		},
		[]string{"provider", "model", "operation", "type"}, // "prompt" / "completion" / "total"
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "provider_errors_total",
			Help:      "Total model provider errors",
		},
		[]string{"provider", "model", "operation", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpack",
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers Prometheus model provider metrics. Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderTokensTotal)
	prometheus.MustRegister(ProviderErrorsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	providerMetricsRegistered = true
}
