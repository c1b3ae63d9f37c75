package tokenizer

import (
	"testing"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
)

func TestApprox_Count(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"привет", 2}, // runes, not bytes
	}
	c := NewApprox(0)
	for _, tt := range tests {
		if got := c.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestApprox_Subadditive(t *testing.T) {
	c := NewApprox(4)
	a, b := "hello ", "world!!"
	if c.Count(a+b) > c.Count(a)+c.Count(b) {
		t.Errorf("Count(a+b)=%d > Count(a)+Count(b)=%d", c.Count(a+b), c.Count(a)+c.Count(b))
	}
}

func TestCountMessages(t *testing.T) {
	c := NewApprox(4)
	msgs := []message.Message{
		message.Must(message.User, "abcd"),
		message.Must(message.Assistant, "abcdefgh"),
		message.Must(message.User, ""),
	}
	if got := CountMessages(c, msgs); got != 3 {
		t.Errorf("CountMessages = %d, want 3", got)
	}
	if got := CountMessages(c, nil); got != 0 {
		t.Errorf("CountMessages(nil) = %d, want 0", got)
	}
}

func TestNew(t *testing.T) {
	c, err := New("", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*Approx); !ok {
		t.Errorf("default counter = %T, want *Approx", c)
	}

	if _, err := New("sentencepiece", "", 0); err == nil {
		t.Error("expected error for unknown tokenizer")
	}
}
