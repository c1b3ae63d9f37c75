// Package term defines weighted search terms that boost or filter retrieval.
package term

import (
	"fmt"
	"strings"
)

// DefaultMaxTerms caps the number of distinct terms applied to one retrieval call.
const DefaultMaxTerms = 12

// Term is a weighted search term. Mandatory terms additionally act as hard filters.
type Term struct {
	text      string
	weight    float64
	mandatory bool
}

// New validates and creates a term. Surrounding whitespace is trimmed.
func New(text string, weight float64, mandatory bool) (Term, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Term{}, fmt.Errorf("term text is required")
	}
	if weight < 0 {
		return Term{}, fmt.Errorf("term weight must be non-negative, got %g", weight)
	}
	return Term{text: text, weight: weight, mandatory: mandatory}, nil
}

// Text returns the term text.
func (t Term) Text() string { return t.text }

// Weight returns the boost weight.
func (t Term) Weight() float64 { return t.weight }

// Mandatory reports whether the term must appear in every hit.
func (t Term) Mandatory() bool { return t.mandatory }

// FromCandidates turns raw candidate strings into terms sharing one weight.
// Blank candidates are skipped; duplicates are kept for Merge to resolve.
func FromCandidates(candidates []string, weight float64) []Term {
	out := make([]Term, 0, len(candidates))
	for _, c := range candidates {
		t, err := New(c, weight, false)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Required turns caller-supplied texts into mandatory terms sharing one weight.
// Unlike FromCandidates it rejects blank texts.
func Required(texts []string, weight float64) ([]Term, error) {
	out := make([]Term, 0, len(texts))
	for i, text := range texts {
		t, err := New(text, weight, true)
		if err != nil {
			return nil, fmt.Errorf("required term %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Merge concatenates term lists in priority order and drops case-insensitive
// duplicates. The first occurrence wins, keeping its weight and flags.
func Merge(lists ...[]Term) []Term {
	var total int
	for _, l := range lists {
		total += len(l)
	}
	seen := make(map[string]struct{}, total)
	out := make([]Term, 0, total)
	for _, l := range lists {
		for _, t := range l {
			key := strings.ToLower(t.text)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Cap keeps the first limit terms and reports how many were dropped.
// A non-positive limit falls back to DefaultMaxTerms.
func Cap(terms []Term, limit int) ([]Term, int) {
	if limit <= 0 {
		limit = DefaultMaxTerms
	}
	if len(terms) <= limit {
		return terms, 0
	}
	return terms[:limit], len(terms) - limit
}
