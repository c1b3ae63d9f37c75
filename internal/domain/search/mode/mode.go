// Package mode names the lexical match strategies applied to the raw query text.
package mode

import (
	"fmt"
	"strings"
)

// Mode is the lexical match strategy applied to the raw query text.
type Mode string

// Match mode constants.
const (
	// Phrase matches the query as one exact phrase.
	Phrase Mode = "phrase"
	// Fuzzy matches each query word within Levenshtein distance 1.
	Fuzzy Mode = "fuzzy"
	// Prefix matches every word, the last one as a prefix (search-as-you-type).
	Prefix Mode = "prefix"
	// FreeText matches any query word (OR semantics), ranked by the engine scorer.
	FreeText Mode = "freetext"

	// Default is used when no mode is configured.
	Default = FreeText
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Phrase || m == Fuzzy || m == Prefix || m == FreeText
}

// Parse reads a mode name, ignoring case and surrounding space. Empty yields Default.
func Parse(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown match mode %q (want phrase, fuzzy, prefix or freetext)", s)
	}
	return m, nil
}
