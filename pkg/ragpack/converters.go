package ragpack

import (
	api "github.com/kailas-cloud/ragpack/internal/transport/chi"
)

func toTurnRequest(t Turn) api.TurnRequest {
	return api.TurnRequest{
		Query:    t.Query,
		Required: t.Required,
		Messages: toMessageDTOs(t.Messages),
		Settings: toSettingsDTO(t.Settings),
		Scope:    toScopeDTO(t.Scope),
		Size:     t.Size,
	}
}

func toMessageDTOs(in []Message) []api.MessageDTO {
	out := make([]api.MessageDTO, len(in))
	for i, m := range in {
		out[i] = api.MessageDTO{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func fromMessageDTOs(in []api.MessageDTO) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = Message{Role: Role(m.Role), Content: m.Content}
	}
	return out
}

func toSettingsDTO(s *Settings) *api.SettingsDTO {
	if s == nil {
		return nil
	}
	return &api.SettingsDTO{
		MaxContextTokens:        s.MaxContextTokens,
		ReserveCompletionTokens: s.ReserveCompletionTokens,
		ReserveHeadroomTokens:   s.ReserveHeadroomTokens,
		ContextPrefix:           s.ContextPrefix,
		MemoryPrefix:            s.MemoryPrefix,
		OutOfScopeMessage:       s.OutOfScopeMessage,
	}
}

func toScopeDTO(s *Scope) *api.ScopeDTO {
	if s == nil {
		return nil
	}
	return &api.ScopeDTO{
		Language: s.Language,
		Must:     toConditionDTOs(s.Must),
		MustNot:  toConditionDTOs(s.MustNot),
	}
}

func toConditionDTOs(in []Condition) []api.ConditionDTO {
	if len(in) == 0 {
		return nil
	}
	out := make([]api.ConditionDTO, len(in))
	for i, c := range in {
		out[i] = api.ConditionDTO{Key: c.Key, Match: c.Match}
		if c.Range != nil {
			out[i].Range = &api.RangeDTO{Gte: c.Range.Gte, Lte: c.Range.Lte}
		}
	}
	return out
}

func fromStatsDTO(s api.StatsDTO) Stats {
	return Stats{
		TermsApplied:    s.TermsApplied,
		TermsDropped:    s.TermsDropped,
		ChunksRetrieved: s.ChunksRetrieved,
		RetrievalFailed: s.RetrievalFailed,
		ScopeReason:     s.ScopeReason,
		AvgSimilarity:   s.AvgSimilarity,
		Budget:          s.Budget,
		TokensUsed:      s.TokensUsed,
		DocumentsSeen:   s.DocumentsSeen,
		ChunksAdded:     s.ChunksAdded,
		PackReason:      s.PackReason,
		MemoryAdded:     s.MemoryAdded,
	}
}
