package chunk

import "testing"

func TestDocumentLabel_FallsBackToUnknown(t *testing.T) {
	named := New("1", "text", nil, "d1", "Handbook", "", 0, 0)
	if got := named.DocumentLabel(); got != "Handbook" {
		t.Errorf("DocumentLabel() = %q, want Handbook", got)
	}
	blank := New("2", "text", nil, "d2", "   ", "", 0, 0)
	if got := blank.DocumentLabel(); got != UnknownDocument {
		t.Errorf("DocumentLabel() = %q, want %q", got, UnknownDocument)
	}
}

func TestIsBlank(t *testing.T) {
	c := New("1", " \n\t ", nil, "", "", "", 0, 0)
	if !c.IsBlank() {
		t.Error("expected whitespace-only chunk to be blank")
	}
	c = New("2", "  body  ", nil, "", "", "", 0, 0)
	if c.IsBlank() || c.NormalizedText() != "body" {
		t.Errorf("unexpected normalization: %q", c.NormalizedText())
	}
}

func TestEmbeddings_LimitAndSkip(t *testing.T) {
	chunks := []Chunk{
		New("1", "a", []float32{1}, "", "", "", 0, 0),
		New("2", "b", nil, "", "", "", 0, 0),
		New("3", "c", []float32{3}, "", "", "", 0, 0),
		New("4", "d", []float32{4}, "", "", "", 0, 0),
	}
	got := Embeddings(chunks, 2)
	if len(got) != 2 || got[0][0] != 1 || got[1][0] != 3 {
		t.Errorf("Embeddings(limit=2) = %v", got)
	}
	if got := Embeddings(chunks, 0); len(got) != 3 {
		t.Errorf("Embeddings(no limit) returned %d vectors, want 3", len(got))
	}
}
