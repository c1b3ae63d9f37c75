// Package retrieval fetches ranked chunks for a query through server-side hybrid search.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/chunk"
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/domain/search/mode"
	"github.com/kailas-cloud/ragpack/internal/domain/search/request"
	"github.com/kailas-cloud/ragpack/internal/domain/term"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
)

// Config tunes retrieval.
type Config struct {
	MatchMode mode.Mode
	MaxTerms  int
	Fusion    request.Fusion
	Timeout   time.Duration // zero means only the caller deadline applies
}

// Result is the fused hit list plus the query embedding the scope gate compares against.
type Result struct {
	Chunks         []chunk.Chunk
	QueryEmbedding []float32
	TermsApplied   int
	TermsDropped   int
}

// Service embeds the query, caps the boost terms and runs the hybrid search.
type Service struct {
	repo   Repository
	embed  Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates a retrieval service.
func New(repo Repository, embed Embedder, cfg Config, log *zap.Logger) *Service {
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = term.DefaultMaxTerms
	}
	return &Service{repo: repo, embed: embed, cfg: cfg, logger: log}
}

// Retrieve returns chunks in fused rank order. Terms beyond MaxTerms are dropped
// in priority order and the drop count is logged. Every failure wraps ErrRetrievalFailed.
func (s *Service) Retrieve(
	ctx context.Context, query string, terms []term.Term, size int, scope filter.Expression,
) (Result, error) {
	start := time.Now()
	res, err := s.retrieve(ctx, query, terms, size, scope)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RetrievalDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) retrieve(
	ctx context.Context, query string, terms []term.Term, size int, scope filter.Expression,
) (Result, error) {
	log := logger.FromContext(ctx, s.logger)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	capped, dropped := term.Cap(terms, s.cfg.MaxTerms)
	if dropped > 0 {
		metrics.TermsDroppedTotal.Add(float64(dropped))
		log.Info("Search terms capped",
			zap.Int("kept", len(capped)),
			zap.Int("dropped", dropped),
		)
	}

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		metrics.RetrievalErrorsTotal.WithLabelValues("embed").Inc()
		return Result{}, fmt.Errorf("%w: vectorize query: %w", domain.ErrRetrievalFailed, err)
	}

	req, err := request.NewHybrid(query, s.cfg.MatchMode, capped, scope, emb.Embedding, size, s.cfg.Fusion)
	if err != nil {
		metrics.RetrievalErrorsTotal.WithLabelValues("request").Inc()
		return Result{}, fmt.Errorf("%w: %w: %w", domain.ErrRetrievalFailed, domain.ErrInvalidRequest, err)
	}

	chunks, err := s.repo.SearchHybrid(ctx, &req)
	if err != nil {
		metrics.RetrievalErrorsTotal.WithLabelValues("search").Inc()
		return Result{}, fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}

	log.Debug("Hybrid retrieval completed",
		zap.Int("hits", len(chunks)),
		zap.Int("terms", len(capped)),
		zap.String("match_mode", string(req.MatchMode())),
	)

	return Result{
		Chunks:         chunks,
		QueryEmbedding: emb.Embedding,
		TermsApplied:   len(capped),
		TermsDropped:   dropped,
	}, nil
}
