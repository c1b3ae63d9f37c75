package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("ragpack:chunks:idx").
		Prefix("ragpack:chunk:").
		Text("content", 1).
		Tag("language", "").
		Numeric("page_number").
		Vector("embedding", 1024, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	if idx.Fields[0].Type != IndexFieldText || idx.Fields[0].TextWeight != 1 {
		t.Errorf("field[0] = %+v, want content TEXT weight 1", idx.Fields[0])
	}
	v := idx.Fields[3]
	if v.Type != IndexFieldVector || v.VectorDim != 1024 || v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("vector field = %+v", v)
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		errSub  string
	}{
		{"empty name", NewIndex("").Tag("a", ""), "name is required"},
		{"bad name", NewIndex("has space").Tag("a", ""), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"duplicate", NewIndex("idx").Tag("a", "").Numeric("a"), "duplicate field"},
		{"zero dim", NewIndex("idx").Vector("v", 0, DistanceCosine, 0, 0), "positive DIM"},
		{"negative weight", NewIndex("idx").Text("t", -1), "weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error = %q, want substring %q", err, tt.errSub)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("idx").Prefix("p:").Text("content", 0).Vector("embedding", 8, DistanceCosine, 0, 0).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "FT.CREATE idx ON HASH PREFIX p: SCHEMA content TEXT embedding VECTOR HNSW"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for _, s := range []string{"abc", "a:b-c_1"} {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	for _, s := range []string{"", "a b", "a/b", "ä"} {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}
