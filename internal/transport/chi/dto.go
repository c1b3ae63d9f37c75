package chi

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/usecase/contextbuild"
)

// MessageDTO is a conversation message on the wire.
type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SettingsDTO overrides the configured chat settings per request.
type SettingsDTO struct {
	MaxContextTokens        *int    `json:"max_context_tokens,omitempty"`
	ReserveCompletionTokens *int    `json:"reserve_completion_tokens,omitempty"`
	ReserveHeadroomTokens   *int    `json:"reserve_headroom_tokens,omitempty"`
	ContextPrefix           *string `json:"context_prefix,omitempty"`
	MemoryPrefix            *string `json:"memory_prefix,omitempty"`
	OutOfScopeMessage       *string `json:"out_of_scope_message,omitempty"`
}

// RangeDTO bounds a numeric field.
type RangeDTO struct {
	Gte *float64 `json:"gte,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// ConditionDTO is a single filter condition: exactly one of Match or Range.
type ConditionDTO struct {
	Key   string    `json:"key"`
	Match *string   `json:"match,omitempty"`
	Range *RangeDTO `json:"range,omitempty"`
}

// ScopeDTO restricts retrieval to matching chunks.
type ScopeDTO struct {
	Language string         `json:"language,omitempty"`
	Must     []ConditionDTO `json:"must,omitempty"`
	MustNot  []ConditionDTO `json:"must_not,omitempty"`
}

// TurnRequest is the body of POST /v1/context and POST /v1/chat.
type TurnRequest struct {
	Query    string       `json:"query,omitempty"`
	Required []string     `json:"required,omitempty"`
	Messages []MessageDTO `json:"messages"`
	Settings *SettingsDTO `json:"settings,omitempty"`
	Scope    *ScopeDTO    `json:"scope,omitempty"`
	Size     int          `json:"size,omitempty"`
}

// StatsDTO reports what each pipeline stage contributed.
type StatsDTO struct {
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

// ContextResponse is the body returned by POST /v1/context.
type ContextResponse struct {
	Status   string       `json:"status"`
	Messages []MessageDTO `json:"messages"`
	Stats    StatsDTO     `json:"stats"`
}

// ChatResponse is the body returned by POST /v1/chat.
type ChatResponse struct {
	Status string   `json:"status"`
	Reply  string   `json:"reply"`
	Stats  StatsDTO `json:"stats"`
}

// FactsRequest is the body of PUT /v1/facts.
type FactsRequest struct {
	Messages []MessageDTO `json:"messages"`
	Facts    []string     `json:"facts"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func messagesFromDTO(in []MessageDTO) ([]message.Message, error) {
	out := make([]message.Message, 0, len(in))
	for i, m := range in {
		msg, err := message.New(message.Role(m.Role), m.Content)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func messagesToDTO(in []message.Message) []MessageDTO {
	out := make([]MessageDTO, len(in))
	for i, m := range in {
		out[i] = MessageDTO{Role: string(m.Role()), Content: m.Content()}
	}
	return out
}

// applySettings overlays the request overrides on the configured defaults.
func applySettings(base contextbuild.Settings, o *SettingsDTO) (contextbuild.Settings, error) {
	if o == nil {
		return base, nil
	}
	for name, v := range map[string]*int{
		"max_context_tokens":        o.MaxContextTokens,
		"reserve_completion_tokens": o.ReserveCompletionTokens,
		"reserve_headroom_tokens":   o.ReserveHeadroomTokens,
	} {
		if v != nil && *v < 0 {
			return base, fmt.Errorf("settings.%s must not be negative", name)
		}
	}

	s := base
	if o.MaxContextTokens != nil {
		s.Packing.MaxContextTokens = *o.MaxContextTokens
	}
	if o.ReserveCompletionTokens != nil {
		s.Packing.ReserveCompletionTokens = *o.ReserveCompletionTokens
	}
	if o.ReserveHeadroomTokens != nil {
		s.Packing.ReserveHeadroomTokens = *o.ReserveHeadroomTokens
	}
	if o.ContextPrefix != nil {
		s.Packing.ContextPrefix = *o.ContextPrefix
	}
	if o.MemoryPrefix != nil {
		s.MemoryPrefix = *o.MemoryPrefix
	}
	if o.OutOfScopeMessage != nil {
		s.OutOfScopeMessage = *o.OutOfScopeMessage
	}
	return s, nil
}

func scopeFromDTO(in *ScopeDTO) (filter.Expression, error) {
	if in == nil {
		return filter.Expression{}, nil
	}
	must, err := conditionsFromDTO(in.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	if in.Language != "" {
		lang, err := filter.NewMatch(filter.FieldLanguage, in.Language)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("language: %w", err)
		}
		must = append(must, lang)
	}
	mustNot, err := conditionsFromDTO(in.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	expr, err := filter.NewExpression(must, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionsFromDTO(cs []ConditionDTO) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromDTO(c ConditionDTO) (filter.Condition, error) {
	if c.Match != nil && c.Range != nil {
		return filter.Condition{},
			fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	}
	if c.Match != nil {
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	}
	if c.Range != nil {
		rf, err := filter.NewRangeFilter(c.Range.Gte, c.Range.Lte)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
	return filter.Condition{}, errors.New("filter condition must have either match or range")
}

func statsToDTO(s contextbuild.Stats) StatsDTO {
	return StatsDTO{
		TermsApplied:    s.TermsApplied,
		TermsDropped:    s.TermsDropped,
		ChunksRetrieved: s.ChunksRetrieved,
		RetrievalFailed: s.RetrievalFailed,
		ScopeReason:     string(s.ScopeReason),
		AvgSimilarity:   s.AvgSimilarity,
		Budget:          s.Budget,
		TokensUsed:      s.TokensUsed,
		DocumentsSeen:   s.DocumentsSeen,
		ChunksAdded:     s.ChunksAdded,
		PackReason:      string(s.PackReason),
		MemoryAdded:     s.MemoryAdded,
	}
}
