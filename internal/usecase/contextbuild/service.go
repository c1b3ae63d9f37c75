// Package contextbuild runs the retrieval-and-packing pipeline for one chat turn.
package contextbuild

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/chunk"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/domain/term"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/usecase/packing"
	"github.com/kailas-cloud/ragpack/internal/usecase/scope"
	"github.com/kailas-cloud/ragpack/internal/usecase/terms"
)

// Settings is the per-conversation chat configuration.
type Settings struct {
	Packing           packing.Settings
	MemoryPrefix      string
	OutOfScopeMessage string
}

// Request is one chat turn. An empty Query falls back to the latest user message.
// Required texts must appear in every retrieved chunk; they rank ahead of extracted terms.
type Request struct {
	Query    string
	Required []string
	Messages []message.Message
	Settings Settings
	Scope    filter.Expression
	Size     int
}

// Stats describes what each stage contributed.
type Stats struct {
	TermsApplied    int
	TermsDropped    int
	ChunksRetrieved int
	RetrievalFailed bool
	ScopeReason     scope.Reason
	AvgSimilarity   float64
	Budget          int
	TokensUsed      int
	DocumentsSeen   int
	ChunksAdded     int
	PackReason      packing.Reason
	MemoryAdded     bool
}

// Result is the message list to send to the model, or an out-of-scope verdict.
// When Status is PromptOutOfScope, Messages is the unmodified conversation.
type Result struct {
	Status   scope.Outcome
	Messages []message.Message
	Stats    Stats
}

// Config holds pipeline-wide defaults.
type Config struct {
	Weights    terms.Weights
	ResultSize int
}

// Service orchestrates terms, retrieval, scope gate, packing and memory.
type Service struct {
	terms     TermExtractor
	retriever Retriever
	gate      Gate
	packer    Packer
	memory    Memory
	cfg       Config
	logger    *zap.Logger
}

// New creates the pipeline. memory may be nil to disable the memory block.
func New(
	t TermExtractor, r Retriever, g Gate, p Packer, m Memory, cfg Config, log *zap.Logger,
) *Service {
	return &Service{terms: t, retriever: r, gate: g, packer: p, memory: m, cfg: cfg, logger: log}
}

// Build runs the pipeline. Only malformed requests fail; retrieval and memory
// failures degrade to a turn without context.
func (s *Service) Build(ctx context.Context, req Request) (Result, error) {
	log := logger.FromContext(ctx, s.logger)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = latestUserMessage(req.Messages)
	}
	if query == "" {
		return Result{}, fmt.Errorf("%w: query or a user message is required", domain.ErrInvalidRequest)
	}

	size := req.Size
	if size <= 0 {
		size = s.cfg.ResultSize
	}

	required, err := term.Required(req.Required, s.cfg.Weights.Query)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	var stats Stats
	boosts := term.Merge(required, s.terms.Extract(ctx, query, req.Messages, s.cfg.Weights))

	var chunks []chunk.Chunk
	var queryEmbedding []float32
	res, err := s.retriever.Retrieve(ctx, query, boosts, size, req.Scope)
	if err != nil {
		stats.RetrievalFailed = true
		log.Warn("Retrieval failed, continuing without context", zap.Error(err))
	} else {
		chunks = res.Chunks
		queryEmbedding = res.QueryEmbedding
		stats.TermsApplied = res.TermsApplied
		stats.TermsDropped = res.TermsDropped
		stats.ChunksRetrieved = len(chunks)
	}

	decision := s.gate.Evaluate(ctx, req.Messages, queryEmbedding, chunk.Embeddings(chunks, s.gate.MaxCandidates()))
	stats.ScopeReason = decision.Reason
	stats.AvgSimilarity = decision.AvgSimilarity
	if !decision.InScope() {
		log.Info("Prompt out of scope",
			zap.Float64("avg_similarity", decision.AvgSimilarity),
			zap.Float64("lower", decision.Lower),
			zap.Float64("upper", decision.Upper),
		)
		return Result{Status: scope.PromptOutOfScope, Messages: req.Messages, Stats: stats}, nil
	}

	var memoryBlock message.Message
	if s.memory != nil {
		memoryBlock, stats.MemoryAdded = s.memory.Append(ctx, req.Messages, req.Settings.MemoryPrefix)
	}

	// The memory block is sent too, so it counts against the context window.
	counted := req.Messages
	if stats.MemoryAdded {
		counted = append([]message.Message{memoryBlock}, req.Messages...)
	}
	packed := s.packer.Pack(ctx, counted, req.Settings.Packing, chunks)
	stats.Budget = packed.Budget
	stats.TokensUsed = packed.TokensUsed
	stats.DocumentsSeen = packed.DocumentsSeen
	stats.ChunksAdded = packed.ChunksAdded
	stats.PackReason = packed.Reason

	out := make([]message.Message, 0, len(req.Messages)+2)
	if stats.MemoryAdded {
		out = append(out, memoryBlock)
	}
	if !packed.Empty() {
		out = append(out, message.Must(message.System, req.Settings.Packing.ContextPrefix+packed.Text))
	}
	out = append(out, req.Messages...)

	log.Info("Context built",
		zap.Int("chunks_retrieved", stats.ChunksRetrieved),
		zap.Int("chunks_added", stats.ChunksAdded),
		zap.Int("tokens_used", stats.TokensUsed),
		zap.Int("budget", stats.Budget),
		zap.Bool("memory", stats.MemoryAdded),
	)
	return Result{Status: scope.ContextAdded, Messages: out, Stats: stats}, nil
}

func latestUserMessage(msgs []message.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role() == message.User {
			if c := strings.TrimSpace(msgs[i].Content()); c != "" {
				return c
			}
		}
	}
	return ""
}
