package terms

import "context"

// Extractor returns candidate search terms (entities, noun phrases) found in a text.
// It is usually a network call and may return an empty list.
type Extractor interface {
	ExtractCandidates(ctx context.Context, text string) ([]string, error)
}
