// Package terms turns the query and the conversation history into weighted search terms.
package terms

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/domain/term"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
)

// Source names an extraction pass.
type Source string

// Extraction passes, in merge priority order.
const (
	SourceQuery     Source = "query"
	SourceUser      Source = "user"
	SourceAssistant Source = "assistant"
)

// Weights are the boost weights assigned to terms of each pass.
type Weights struct {
	Query     float64
	User      float64
	Assistant float64
}

// DefaultWeights favours the query over the history.
func DefaultWeights() Weights {
	return Weights{Query: 5, User: 2, Assistant: 1}
}

// Config tunes the booster.
type Config struct {
	// PoolSize bounds concurrent extraction calls across all requests.
	PoolSize int
	// PassTimeout bounds each extraction pass; zero means only the caller deadline applies.
	PassTimeout time.Duration
}

// Booster runs the three extraction passes on a shared bounded pool and merges the results.
type Booster struct {
	extractor Extractor
	pool      *ants.Pool
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a booster. Release must be called on shutdown.
func New(extractor Extractor, cfg Config, log *zap.Logger) (*Booster, error) {
	size := cfg.PoolSize
	if size < 3 {
		size = 3
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create extraction pool: %w", err)
	}
	return &Booster{extractor: extractor, pool: pool, timeout: cfg.PassTimeout, logger: log}, nil
}

// Release stops the worker pool.
func (b *Booster) Release() {
	b.pool.Release()
}

type pass struct {
	source Source
	text   string
	weight float64
	terms  []term.Term
}

// Extract runs the query, user-history and assistant-history passes concurrently
// and merges them in that priority order, deduplicating case-insensitively.
// A failed pass is logged and contributes no terms.
func (b *Booster) Extract(ctx context.Context, query string, msgs []message.Message, w Weights) []term.Term {
	passes := []*pass{
		{source: SourceQuery, text: query, weight: w.Query},
		{source: SourceUser, text: message.JoinContent(msgs, message.User), weight: w.User},
		{source: SourceAssistant, text: message.JoinContent(msgs, message.Assistant), weight: w.Assistant},
	}

	var wg sync.WaitGroup
	for _, p := range passes {
		if strings.TrimSpace(p.text) == "" {
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			p.terms = b.run(ctx, p)
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			b.fail(ctx, p.source, fmt.Errorf("submit: %w", err))
		}
	}
	wg.Wait()

	lists := make([][]term.Term, len(passes))
	for i, p := range passes {
		lists[i] = p.terms
	}
	return term.Merge(lists...)
}

func (b *Booster) run(ctx context.Context, p *pass) []term.Term {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	candidates, err := b.extractor.ExtractCandidates(ctx, p.text)
	if err != nil {
		b.fail(ctx, p.source, err)
		return nil
	}
	return term.FromCandidates(candidates, p.weight)
}

func (b *Booster) fail(ctx context.Context, source Source, err error) {
	metrics.TermExtractionFailuresTotal.WithLabelValues(string(source)).Inc()
	logger.FromContext(ctx, b.logger).Warn("Term extraction pass failed",
		zap.String("source", string(source)),
		zap.Error(err),
	)
}
