package contextbuild

import (
	"context"

	"github.com/kailas-cloud/ragpack/internal/domain/chunk"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/domain/term"
	"github.com/kailas-cloud/ragpack/internal/usecase/packing"
	"github.com/kailas-cloud/ragpack/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragpack/internal/usecase/scope"
	"github.com/kailas-cloud/ragpack/internal/usecase/terms"
)

// TermExtractor produces weighted boost terms for a turn.
type TermExtractor interface {
	Extract(ctx context.Context, query string, msgs []message.Message, w terms.Weights) []term.Term
}

// Retriever runs the hybrid search.
type Retriever interface {
	Retrieve(
		ctx context.Context, query string, terms []term.Term, size int, scope filter.Expression,
	) (retrieval.Result, error)
}

// Gate decides whether the evidence supports the query.
type Gate interface {
	Evaluate(ctx context.Context, msgs []message.Message, query []float32, candidates [][]float32) scope.Decision
	MaxCandidates() int
}

// Packer assembles the token-bounded context block.
type Packer interface {
	Pack(ctx context.Context, msgs []message.Message, s packing.Settings, chunks []chunk.Chunk) packing.Packed
}

// Memory renders remembered facts for the conversation.
type Memory interface {
	Append(ctx context.Context, msgs []message.Message, prefix string) (message.Message, bool)
}
