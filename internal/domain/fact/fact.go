// Package fact defines remembered facts associated with a conversation.
package fact

import (
	"fmt"
	"strings"
)

// Fact is a single remembered statement about the user or conversation.
type Fact struct {
	content string
}

// New validates and creates a fact.
func New(content string) (Fact, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Fact{}, fmt.Errorf("fact content is required")
	}
	return Fact{content: content}, nil
}

// Content returns the fact text.
func (f Fact) Content() string { return f.content }

// FromStrings builds facts from raw strings, skipping blank entries.
func FromStrings(items []string) []Fact {
	out := make([]Fact, 0, len(items))
	for _, s := range items {
		f, err := New(s)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Strings returns the fact contents in order.
func Strings(facts []Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.content
	}
	return out
}

// Format renders facts as a bullet list. Returns "" for an empty list.
func Format(facts []Fact) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range facts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(f.content)
	}
	return b.String()
}
