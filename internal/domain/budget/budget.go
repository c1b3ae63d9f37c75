// Package budget computes the token allowance left for injected retrieval context.
package budget

// Context tracks token allocation for one chat turn. Recomputed every turn, never persisted.
type Context struct {
	MaxContext        int // model context window in tokens
	Conversation      int // tokens used by the current conversation
	Prefix            int // tokens used by the context prefix text
	ReserveCompletion int // reserved for the model reply
	ReserveHeadroom   int // safety margin for tokenizer drift
}

// Used returns the total number of tokens already claimed.
func (b Context) Used() int {
	return b.Conversation + b.Prefix + b.ReserveCompletion + b.ReserveHeadroom
}

// Raw returns the unclamped remainder; negative when the window is oversubscribed.
func (b Context) Raw() int {
	return b.MaxContext - b.Used()
}

// Available returns the tokens left for context, clamped to zero.
func (b Context) Available() int {
	return max(0, b.Raw())
}

// Exhausted reports whether no context can be packed.
func (b Context) Exhausted() bool {
	return b.Raw() <= 0
}
