// Package scope decides whether retrieved evidence is topically coherent with the query.
package scope

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
)

// Outcome is the gate verdict.
type Outcome string

const (
	// ContextAdded means the evidence supports the question; packing may proceed.
	ContextAdded Outcome = "CONTEXT_ADDED"
	// PromptOutOfScope means the caller should answer with the configured out-of-scope message.
	PromptOutOfScope Outcome = "PROMPT_OUT_OF_SCOPE"
)

// Reason explains how the gate reached its outcome.
type Reason string

// Gate reasons.
const (
	ReasonShortConversation    Reason = "short_conversation"
	ReasonInsufficientEvidence Reason = "insufficient_evidence"
	ReasonWithinBand           Reason = "within_band"
	ReasonOutsideBand          Reason = "outside_band"
)

// Config holds the tunable statistical constants.
type Config struct {
	// MinMessages: conversations with at most this many messages skip the gate.
	MinMessages int
	// MaxCandidates caps how many top-ranked embeddings are compared.
	MaxCandidates int
	// IQRMultiplier scales the interquartile range used for outlier removal.
	IQRMultiplier float64
	// ErrorBuffer widens the normal band by this fraction of its width on each side.
	ErrorBuffer float64
}

// DefaultConfig returns the empirically tuned defaults.
func DefaultConfig() Config {
	return Config{MinMessages: 4, MaxCandidates: 25, IQRMultiplier: 1.5, ErrorBuffer: 0.5}
}

// Decision is the gate verdict with the statistics behind it.
type Decision struct {
	Outcome       Outcome
	Reason        Reason
	AvgSimilarity float64
	Lower         float64
	Upper         float64
}

// InScope reports whether context may be added.
func (d Decision) InScope() bool { return d.Outcome == ContextAdded }

// Gate compares the query against the spread of the candidate set.
type Gate struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a gate. Non-positive constants fall back to DefaultConfig values.
func New(cfg Config, log *zap.Logger) *Gate {
	def := DefaultConfig()
	if cfg.MinMessages < 0 {
		cfg.MinMessages = def.MinMessages
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.IQRMultiplier <= 0 {
		cfg.IQRMultiplier = def.IQRMultiplier
	}
	if cfg.ErrorBuffer < 0 {
		cfg.ErrorBuffer = def.ErrorBuffer
	}
	return &Gate{cfg: cfg, logger: log}
}

// MaxCandidates is how many top-ranked embeddings Evaluate looks at.
func (g *Gate) MaxCandidates() int { return g.cfg.MaxCandidates }

// Evaluate decides whether the query is in scope of the candidates.
// Short conversations and fewer than two usable embeddings are always in scope.
func (g *Gate) Evaluate(
	ctx context.Context, msgs []message.Message, query []float32, candidates [][]float32,
) Decision {
	d := g.evaluate(msgs, query, candidates)

	metrics.ScopeDecisionsTotal.WithLabelValues(string(d.Outcome), string(d.Reason)).Inc()
	logger.FromContext(ctx, g.logger).Debug("Scope gate evaluated",
		zap.String("outcome", string(d.Outcome)),
		zap.String("reason", string(d.Reason)),
		zap.Float64("avg_similarity", d.AvgSimilarity),
		zap.Float64("lower", d.Lower),
		zap.Float64("upper", d.Upper),
	)
	return d
}

func (g *Gate) evaluate(msgs []message.Message, query []float32, candidates [][]float32) Decision {
	if len(msgs) <= g.cfg.MinMessages {
		return Decision{Outcome: ContextAdded, Reason: ReasonShortConversation}
	}

	vecs := make([][]float32, 0, min(len(candidates), g.cfg.MaxCandidates))
	for _, v := range candidates {
		if len(vecs) == g.cfg.MaxCandidates {
			break
		}
		if len(v) > 0 {
			vecs = append(vecs, v)
		}
	}
	if len(vecs) < 2 || len(query) == 0 {
		return Decision{Outcome: ContextAdded, Reason: ReasonInsufficientEvidence}
	}

	pairs := withoutOutliers(pairwise(vecs), g.cfg.IQRMultiplier)
	mean, sd := meanStddev(pairs)
	lower, upper := mean-sd, mean+sd

	width := upper - lower
	lower -= g.cfg.ErrorBuffer * width
	upper += g.cfg.ErrorBuffer * width

	avg, _ := meanStddev(withoutOutliers(oneVsMany(query, vecs), g.cfg.IQRMultiplier))

	d := Decision{AvgSimilarity: avg, Lower: lower, Upper: upper}
	if avg >= lower && avg <= upper {
		d.Outcome, d.Reason = ContextAdded, ReasonWithinBand
	} else {
		d.Outcome, d.Reason = PromptOutOfScope, ReasonOutsideBand
	}
	return d
}
