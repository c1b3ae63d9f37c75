package budget

import "testing"

func TestContext_Available(t *testing.T) {
	b := Context{MaxContext: 100, Conversation: 60, Prefix: 5, ReserveCompletion: 20, ReserveHeadroom: 10}
	if got := b.Available(); got != 5 {
		t.Errorf("Available() = %d, want 5", got)
	}
	if b.Exhausted() {
		t.Error("budget of 5 must not be exhausted")
	}
}

func TestContext_ClampsToZero(t *testing.T) {
	b := Context{MaxContext: 100, Conversation: 90, Prefix: 5, ReserveCompletion: 20}
	if got := b.Raw(); got != -15 {
		t.Errorf("Raw() = %d, want -15", got)
	}
	if got := b.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0", got)
	}
	if !b.Exhausted() {
		t.Error("expected exhausted budget")
	}
}

func TestContext_ExactlyZero(t *testing.T) {
	b := Context{MaxContext: 50, Conversation: 50}
	if !b.Exhausted() || b.Available() != 0 {
		t.Errorf("zero budget: exhausted=%v available=%d", b.Exhausted(), b.Available())
	}
}
