// Package tokenizer counts tokens the way the target language model would.
package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
)

// DefaultCharsPerToken is the ratio used by Approx when none is configured.
const DefaultCharsPerToken = 4

// Counter returns the number of tokens in a text. Implementations are pure and safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// CountMessages sums Count over message contents.
func CountMessages(c Counter, msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.Count(m.Content())
	}
	return total
}

// Approx estimates tokens from the rune count, rounding up.
type Approx struct {
	charsPerToken int
}

// NewApprox creates an approximate counter. charsPerToken <= 0 means DefaultCharsPerToken.
func NewApprox(charsPerToken int) *Approx {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &Approx{charsPerToken: charsPerToken}
}

// Count returns ceil(runes / charsPerToken).
func (a *Approx) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + a.charsPerToken - 1) / a.charsPerToken
}

// Tiktoken counts exact BPE tokens for an OpenAI encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding (e.g. "cl100k_base", "o200k_base").
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of BPE tokens. Special-token text is counted as ordinary text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// New builds the configured counter: "approx" (default) or "tiktoken".
func New(kind, encoding string, charsPerToken int) (Counter, error) {
	switch kind {
	case "", "approx":
		return NewApprox(charsPerToken), nil
	case "tiktoken":
		return NewTiktoken(encoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}
