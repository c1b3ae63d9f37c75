package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ragpack/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchHybridFn func(ctx context.Context, q *db.HybridQuery) (*db.SearchResult, error)
	unsupported    bool
}

func (m *mockStore) SearchHybrid(ctx context.Context, q *db.HybridQuery) (*db.SearchResult, error) {
	if m.searchHybridFn != nil {
		return m.searchHybridFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SupportsHybridSearch(_ context.Context) bool {
	return !m.unsupported
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
