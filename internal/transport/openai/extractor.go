package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/metrics"
)

const extractAttempts = 3

const extractPrompt = `You extract search keywords from text.
Return a JSON object {"terms": [...]} listing the distinctive nouns, noun phrases,
names and identifiers in the text, most important first. Use the wording of the text.
Return {"terms": []} when nothing qualifies. Do not explain.`

// TermExtractor asks a chat model for the key terms of a text, in JSON mode.
type TermExtractor struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewTermExtractor creates an OpenAI-compatible term extractor.
func NewTermExtractor(cfg *Config) *TermExtractor {
	return &TermExtractor{client: newClient(cfg), model: cfg.Model, provider: cfg.Provider, logger: logger(cfg)}
}

type extraction struct {
	Terms []string `json:"terms"`
}

// ExtractCandidates returns candidate terms in the model's order.
// A malformed reply is retried; transport errors are returned at once.
func (e *TermExtractor) ExtractCandidates(ctx context.Context, text string) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= extractAttempts; attempt++ {
		c := startCall(e.provider, e.model, metrics.OpExtraction)
		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			c.failed(errTypeAPI)
			return nil, parseAPIError("extraction", err, domain.ErrExtractionFailed)
		}
		if len(resp.Choices) == 0 {
			c.failed(errTypeEmpty)
			return nil, nil
		}

		raw := stripCodeFence(resp.Choices[0].Message.Content)
		var out extraction
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			c.failed(errTypeMalformed)
			lastErr = err
			e.logger.Warn("Malformed extraction reply",
				zap.Int("attempt", attempt),
				zap.String("reply", raw),
				zap.Error(err),
			)
			continue
		}
		c.succeeded(resp.Usage)
		return out.Terms, nil
	}
	return nil, fmt.Errorf("%w: unparseable reply after %d attempts: %w", domain.ErrExtractionFailed, extractAttempts, lastErr)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
