package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/chunk"
	"github.com/kailas-cloud/ragpack/internal/domain/search/request"
	"github.com/kailas-cloud/ragpack/internal/repository/chunkindex"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchHybrid(ctx context.Context, q *db.HybridQuery) (*db.SearchResult, error)
	SupportsHybridSearch(ctx context.Context) bool
}

// Repo implements usecase/retrieval.Repository.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchHybrid runs a fused lexical+vector search over the chunk index.
// Chunks come back in fused rank order with their stored embeddings.
func (r *Repo) SearchHybrid(ctx context.Context, req *request.Hybrid) ([]chunk.Chunk, error) {
	if !r.store.SupportsHybridSearch(ctx) {
		return nil, domain.ErrHybridSearchNotSupported
	}

	sr, err := r.store.SearchHybrid(ctx, toQuery(req))
	if err != nil {
		return nil, fmt.Errorf("search hybrid: %w", err)
	}

	return toChunks(sr), nil
}

func toQuery(req *request.Hybrid) *db.HybridQuery {
	boosts := make([]db.Boost, 0, len(req.Boosts()))
	for _, t := range req.Boosts() {
		boosts = append(boosts, db.Boost{Phrase: t.Text(), Weight: t.Weight()})
	}

	var required []string
	for _, t := range req.Mandatory() {
		required = append(required, t.Text())
	}

	fusion := req.Fusion()
	return &db.HybridQuery{
		IndexName:   domain.ChunkIndexName,
		TextField:   chunkindex.FieldContent,
		Text:        req.Query(),
		MatchMode:   req.MatchMode(),
		Boosts:      boosts,
		Required:    required,
		Filters:     req.Filters(),
		VectorField: chunkindex.FieldEmbedding,
		Vector:      req.Vector(),
		K:           req.K(),
		Limit:       req.Size(),
		Fusion:      db.RRF{Constant: fusion.Constant, Window: fusion.Window},
		LoadFields:  chunkindex.LoadFields,
	}
}

func toChunks(sr *db.SearchResult) []chunk.Chunk {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	out := make([]chunk.Chunk, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		page, _ := strconv.Atoi(e.Fields[chunkindex.FieldPageNumber])
		out = append(out, chunk.New(
			strings.TrimPrefix(e.Key, domain.ChunkKeyPrefix),
			e.Fields[chunkindex.FieldContent],
			db.DecodeVector(e.Fields[chunkindex.FieldEmbedding]),
			e.Fields[chunkindex.FieldDocumentID],
			e.Fields[chunkindex.FieldDocumentName],
			e.Fields[chunkindex.FieldSectionTitle],
			page,
			e.Score,
		))
	}
	return out
}
