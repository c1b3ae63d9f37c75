package openai

import (
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/ragpack/internal/metrics"
)

// Error types, used as the "error_type" label.
const (
	errTypeAPI        = "api_error"
	errTypeEmpty      = "empty_response"
	errTypeMalformed  = "malformed_reply"
	errTypeDimensions = "dimension_mismatch"
)

// call records one provider request in the shared provider metrics.
type call struct {
	provider, model, op string
	start               time.Time
}

func startCall(provider, model, op string) *call {
	if provider == "" {
		provider = "openai"
	}
	return &call{provider: provider, model: model, op: op, start: time.Now()}
}

func (c *call) failed(errType string) {
	metrics.ProviderRequestsTotal.WithLabelValues(c.provider, c.model, c.op, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(c.provider, c.model, c.op, errType).Inc()
}

func (c *call) succeeded(usage openai.Usage) time.Duration {
	d := time.Since(c.start)
	metrics.ProviderRequestsTotal.WithLabelValues(c.provider, c.model, c.op, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(c.provider, c.model, c.op).Observe(d.Seconds())

	if usage.TotalTokens > 0 {
		metrics.ProviderTokensTotal.WithLabelValues(c.provider, c.model, c.op, "prompt").Add(float64(usage.PromptTokens))
		if usage.CompletionTokens > 0 {
			metrics.ProviderTokensTotal.WithLabelValues(c.provider, c.model, c.op, "completion").
				Add(float64(usage.CompletionTokens))
		}
		metrics.ProviderTokensTotal.WithLabelValues(c.provider, c.model, c.op, "total").Add(float64(usage.TotalTokens))
	}
	return d
}
