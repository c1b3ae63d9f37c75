// Package chunkindex owns the FT index over chunk hashes that hybrid retrieval queries.
package chunkindex

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
)

// Hash fields of an indexed chunk.
const (
	FieldContent      = "content"
	FieldDocumentID   = filter.FieldDocumentID
	FieldDocumentName = filter.FieldDocumentName
	FieldSectionTitle = "section_title"
	FieldPageNumber   = filter.FieldPageNumber
	FieldLanguage     = filter.FieldLanguage
	FieldEmbedding    = "embedding"
)

// LoadFields are returned with every hit.
var LoadFields = []string{
	FieldContent, FieldDocumentID, FieldDocumentName, FieldSectionTitle, FieldPageNumber, FieldEmbedding,
}

// store is the consumer interface for index bootstrap (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Manager creates the chunk index on demand.
type Manager struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
	logger    *zap.Logger
}

// New creates an index manager for vectors of the given dimension.
func New(s store, vectorDim int, logger *zap.Logger) *Manager {
	return &Manager{store: s, vectorDim: vectorDim, hnsw: HNSWConfig{M: 32, EFConstruct: 400}, logger: logger}
}

// WithHNSW configures HNSW index parameters.
func (m *Manager) WithHNSW(cfg HNSWConfig) *Manager {
	if cfg.M > 0 {
		m.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		m.hnsw.EFConstruct = cfg.EFConstruct
	}
	return m
}

// EnsureIndex creates the chunk index when it does not exist yet.
// A concurrent creator winning the race is not an error.
func (m *Manager) EnsureIndex(ctx context.Context) error {
	exists, err := m.store.IndexExists(ctx, domain.ChunkIndexName)
	if err != nil {
		return fmt.Errorf("check chunk index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := m.definition()
	if err != nil {
		return fmt.Errorf("build chunk index: %w", err)
	}

	if err := m.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create chunk index: %w", err)
	}

	m.logger.Info("Chunk index created",
		zap.String("index", def.Name),
		zap.Int("vector_dim", m.vectorDim),
	)
	return nil
}

func (m *Manager) definition() (*db.IndexDefinition, error) {
	//nolint:wrapcheck // caller wraps
	return db.NewIndex(domain.ChunkIndexName).
		Prefix(domain.ChunkKeyPrefix).
		Text(FieldContent, 0).
		Tag(FieldDocumentID, "").
		Tag(FieldDocumentName, "").
		Text(FieldSectionTitle, 0).
		Numeric(FieldPageNumber).
		Tag(FieldLanguage, "").
		Vector(FieldEmbedding, m.vectorDim, db.DistanceCosine, m.hnsw.M, m.hnsw.EFConstruct).
		Build()
}
