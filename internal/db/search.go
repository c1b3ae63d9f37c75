package db

import (
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/domain/search/mode"
)

// Boost is an optional phrase clause that raises the score of matching hits.
type Boost struct {
	Phrase string
	Weight float64
}

// RRF configures server-side reciprocal rank fusion.
type RRF struct {
	Constant int
	Window   int
}

// HybridQuery is the input for a fused lexical+vector search.
// Lexical and vector sub-queries are ranked independently and fused by the engine.
type HybridQuery struct {
	IndexName   string
	TextField   string
	Text        string
	MatchMode   mode.Mode
	Boosts      []Boost
	Required    []string // phrases every hit must contain
	Filters     filter.Expression
	VectorField string
	Vector      []float32
	K           int
	Limit       int
	Fusion      RRF
	LoadFields  []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search, in engine rank order.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
