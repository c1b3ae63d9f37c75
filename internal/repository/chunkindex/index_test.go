package chunkindex

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
)

type mockStore struct {
	exists    bool
	existsErr error
	createErr error
	created   *db.IndexDefinition
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.created = def
	return m.createErr
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	ms := &mockStore{}
	m := New(ms, 1024, zap.NewNop()).WithHNSW(HNSWConfig{M: 16})

	if err := m.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.created == nil {
		t.Fatal("expected CreateIndex call")
	}
	if ms.created.Name != domain.ChunkIndexName {
		t.Errorf("index name = %q", ms.created.Name)
	}
	if len(ms.created.Prefixes) != 1 || ms.created.Prefixes[0] != domain.ChunkKeyPrefix {
		t.Errorf("prefixes = %v", ms.created.Prefixes)
	}

	types := make(map[string]db.IndexFieldType)
	for _, f := range ms.created.Fields {
		types[f.Name] = f.Type
	}
	want := map[string]db.IndexFieldType{
		FieldContent:      db.IndexFieldText,
		FieldDocumentID:   db.IndexFieldTag,
		FieldDocumentName: db.IndexFieldTag,
		FieldSectionTitle: db.IndexFieldText,
		FieldPageNumber:   db.IndexFieldNumeric,
		FieldLanguage:     db.IndexFieldTag,
		FieldEmbedding:    db.IndexFieldVector,
	}
	for name, typ := range want {
		if types[name] != typ {
			t.Errorf("field %s type = %v, want %v", name, types[name], typ)
		}
	}

	vec := ms.created.Fields[len(ms.created.Fields)-1]
	if vec.VectorDim != 1024 || vec.VectorM != 16 || vec.VectorEFConstruct != 400 {
		t.Errorf("vector field = %+v", vec)
	}
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	ms := &mockStore{exists: true}
	if err := New(ms, 8, zap.NewNop()).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.created != nil {
		t.Fatal("CreateIndex must not be called for an existing index")
	}
}

func TestEnsureIndex_RaceIsNotAnError(t *testing.T) {
	ms := &mockStore{createErr: db.ErrIndexExists}
	if err := New(ms, 8, zap.NewNop()).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_Errors(t *testing.T) {
	ms := &mockStore{existsErr: errors.New("conn refused")}
	if err := New(ms, 8, zap.NewNop()).EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected index check error")
	}

	ms = &mockStore{createErr: errors.New("boom")}
	if err := New(ms, 8, zap.NewNop()).EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected create error")
	}

	ms = &mockStore{}
	if err := New(ms, 0, zap.NewNop()).EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected validation error for zero dimension")
	}
}
