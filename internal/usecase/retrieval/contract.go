package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/chunk"
	"github.com/kailas-cloud/ragpack/internal/domain/search/request"
)

// Repository runs fused lexical+vector searches over the chunk index.
type Repository interface {
	SearchHybrid(ctx context.Context, req *request.Hybrid) ([]chunk.Chunk, error)
}

// Embedder vectorizes the query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
