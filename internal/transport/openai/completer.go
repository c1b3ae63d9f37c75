package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/metrics"
)

const defaultMaxTokens = 1024

// Completer answers a conversation with an OpenAI-compatible chat model.
type Completer struct {
	client      *openai.Client
	model       string
	provider    string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewCompleter creates a chat completion client.
func NewCompleter(cfg *Config) *Completer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Completer{
		client:      newClient(cfg),
		model:       cfg.Model,
		provider:    cfg.Provider,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      logger(cfg),
	}
}

// Complete returns the first choice of the model reply.
func (c *Completer) Complete(ctx context.Context, msgs []message.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role()),
			Content: m.Content(),
		})
	}

	call := startCall(c.provider, c.model, metrics.OpCompletion)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		call.failed(errTypeAPI)
		return "", parseAPIError("completion", err, domain.ErrCompletionFailed)
	}
	if len(resp.Choices) == 0 {
		call.failed(errTypeEmpty)
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionFailed)
	}
	latency := call.succeeded(resp.Usage)

	c.logger.Debug("Completion received",
		zap.Duration("latency", latency),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
