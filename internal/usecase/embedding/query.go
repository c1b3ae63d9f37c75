// Package embedding prepares retrieval queries for the embedding provider.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/logger"
)

// DefaultMaxQueryRunes caps the query text sent for embedding.
const DefaultMaxQueryRunes = 4000

// QueryEmbedder normalizes a retrieval query, embeds it and logs the outcome.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type QueryEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	maxRunes int
	logger   *zap.Logger
}

// NewQueryEmbedder wraps an embedder. maxRunes <= 0 uses DefaultMaxQueryRunes.
func NewQueryEmbedder(inner domain.Embedder, provider, model string, maxRunes int, log *zap.Logger) *QueryEmbedder {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxQueryRunes
	}
	return &QueryEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		maxRunes: maxRunes,
		logger:   log,
	}
}

// Embed trims the query, keeps its last maxRunes runes and delegates.
// A blank query is rejected without calling the provider.
func (q *QueryEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContext(ctx, q.logger)

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("empty query: %w", domain.ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(text); n > q.maxRunes {
		// The newest part of a long query is the question itself.
		runes := []rune(text)
		text = string(runes[n-q.maxRunes:])
		log.Warn("Query truncated for embedding",
			zap.Int("runes", n),
			zap.Int("max_runes", q.maxRunes),
		)
	}

	start := time.Now()
	result, err := q.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		log.Error("Embedding request failed",
			zap.String("provider", q.provider),
			zap.String("model", q.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrEmbeddingProviderError) {
			return domain.EmbeddingResult{}, err
		}
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}

	log.Debug("Embedding request completed",
		zap.String("provider", q.provider),
		zap.String("model", q.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (q *QueryEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := q.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
