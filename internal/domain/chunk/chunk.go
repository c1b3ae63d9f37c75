// Package chunk defines the retrieved passage produced by hybrid search.
package chunk

import "strings"

// UnknownDocument labels chunks whose document name is absent.
const UnknownDocument = "Unknown"

// Chunk is a single retrieved passage. Immutable, scoped to one request.
type Chunk struct {
	id           string
	text         string
	embedding    []float32
	documentID   string
	documentName string
	sectionTitle string
	pageNumber   int
	score        float64
}

// New creates a retrieved chunk.
func New(
	id, text string, embedding []float32,
	documentID, documentName, sectionTitle string,
	pageNumber int, score float64,
) Chunk {
	return Chunk{
		id: id, text: text, embedding: embedding,
		documentID: documentID, documentName: documentName, sectionTitle: sectionTitle,
		pageNumber: pageNumber, score: score,
	}
}

// ID returns the chunk key within the index.
func (c *Chunk) ID() string { return c.id }

// Text returns the raw passage text.
func (c *Chunk) Text() string { return c.text }

// NormalizedText returns the passage text with surrounding whitespace removed.
func (c *Chunk) NormalizedText() string { return strings.TrimSpace(c.text) }

// IsBlank reports whether the passage has no usable text.
func (c *Chunk) IsBlank() bool { return c.NormalizedText() == "" }

// Embedding returns the chunk embedding as stored in the index.
func (c *Chunk) Embedding() []float32 { return c.embedding }

// DocumentID returns the source document identifier.
func (c *Chunk) DocumentID() string { return c.documentID }

// DocumentName returns the source document name.
func (c *Chunk) DocumentName() string { return c.documentName }

// DocumentLabel returns the document name, or UnknownDocument when it is blank.
func (c *Chunk) DocumentLabel() string {
	if name := strings.TrimSpace(c.documentName); name != "" {
		return name
	}
	return UnknownDocument
}

// SectionTitle returns the section the passage belongs to.
func (c *Chunk) SectionTitle() string { return c.sectionTitle }

// PageNumber returns the 1-based page number, 0 when unknown.
func (c *Chunk) PageNumber() int { return c.pageNumber }

// Score returns the fused relevance score.
func (c *Chunk) Score() float64 { return c.score }

// Embeddings collects the embeddings of the first limit chunks, skipping chunks without one.
// A non-positive limit means no limit.
func Embeddings(chunks []Chunk, limit int) [][]float32 {
	out := make([][]float32, 0, len(chunks))
	for i := range chunks {
		if limit > 0 && len(out) == limit {
			break
		}
		if len(chunks[i].embedding) == 0 {
			continue
		}
		out = append(out, chunks[i].embedding)
	}
	return out
}
