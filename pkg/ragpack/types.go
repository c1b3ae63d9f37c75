package ragpack

// Role is the author of a conversation message.
type Role string

// Conversation roles accepted by the service.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// Settings overrides the server's configured chat settings for one turn.
// Nil fields keep the server default.
type Settings struct {
	MaxContextTokens        *int
	ReserveCompletionTokens *int
	ReserveHeadroomTokens   *int
	ContextPrefix           *string
	MemoryPrefix            *string
	OutOfScopeMessage       *string
}

// Int returns a pointer to v, for Settings fields.
func Int(v int) *int { return &v }

// String returns a pointer to v, for Settings fields.
func String(v string) *string { return &v }

// Condition matches chunks on one indexed field. Set exactly one of Match or Range.
type Condition struct {
	Key   string
	Match *string
	Range *Range
}

// Range bounds a numeric field. Nil bounds are open.
type Range struct {
	Gte *float64
	Lte *float64
}

// MatchCondition builds a tag match condition.
func MatchCondition(key, value string) Condition {
	return Condition{Key: key, Match: &value}
}

// RangeCondition builds a closed numeric range condition.
func RangeCondition(key string, gte, lte float64) Condition {
	return Condition{Key: key, Range: &Range{Gte: &gte, Lte: &lte}}
}

// Scope restricts retrieval to chunks matching every Must condition and no MustNot condition.
type Scope struct {
	Language string
	Must     []Condition
	MustNot  []Condition
}

// Turn is one request to the service: the conversation so far plus optional overrides.
type Turn struct {
	// Query is the retrieval query; empty means the latest user message.
	Query string
	// Required phrases must appear in every retrieved chunk.
	Required []string
	Messages []Message
	Settings *Settings
	Scope    *Scope
	// Size caps the number of retrieved chunks; zero means the server default.
	Size int
}

// Status is the scope outcome reported by the service.
type Status string

// Scope outcomes.
const (
	StatusContextAdded     Status = "CONTEXT_ADDED"
	StatusPromptOutOfScope Status = "PROMPT_OUT_OF_SCOPE"
)

// Stats reports what each pipeline stage contributed to a turn.
type Stats struct {
	TermsApplied    int     `json:"terms_applied"`
	TermsDropped    int     `json:"terms_dropped"`
	ChunksRetrieved int     `json:"chunks_retrieved"`
	RetrievalFailed bool    `json:"retrieval_failed"`
	ScopeReason     string  `json:"scope_reason"`
	AvgSimilarity   float64 `json:"avg_similarity"`
	Budget          int     `json:"budget"`
	TokensUsed      int     `json:"tokens_used"`
	DocumentsSeen   int     `json:"documents_seen"`
	ChunksAdded     int     `json:"chunks_added"`
	PackReason      string  `json:"pack_reason"`
	MemoryAdded     bool    `json:"memory_added"`
}

// ContextResult is the outcome of BuildContext.
type ContextResult struct {
	Status Status `json:"status"`
	// Messages is the final prompt: memory block, context block, then the conversation.
	Messages []Message `json:"messages"`
	Stats    Stats     `json:"stats"`
}

// OutOfScope reports whether the service judged the question unsupported by the retrieved evidence.
func (r ContextResult) OutOfScope() bool { return r.Status == StatusPromptOutOfScope }

// ChatResult is the outcome of Chat.
type ChatResult struct {
	Status Status `json:"status"`
	Reply  string `json:"reply"`
	Stats  Stats  `json:"stats"`
}

// OutOfScope reports whether Reply is the configured out-of-scope message.
func (r ChatResult) OutOfScope() bool { return r.Status == StatusPromptOutOfScope }

// HealthStatus represents the aggregated service health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}
