// Package chat answers a turn with the language model, using the built context.
package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
	"github.com/kailas-cloud/ragpack/internal/usecase/contextbuild"
	"github.com/kailas-cloud/ragpack/internal/usecase/scope"
)

// DefaultOutOfScopeMessage is sent when neither the request nor the config sets one.
const DefaultOutOfScopeMessage = "I can only answer questions about the provided documents."

// Reply is the answer to a turn.
type Reply struct {
	Status scope.Outcome
	Text   string
	Stats  contextbuild.Stats
}

// Service runs a chat turn.
type Service struct {
	builder    ContextBuilder
	completer  Completer
	outOfScope string
	logger     *zap.Logger
}

// New creates a chat service. outOfScope is the fallback out-of-scope reply.
func New(b ContextBuilder, c Completer, outOfScope string, log *zap.Logger) *Service {
	if outOfScope == "" {
		outOfScope = DefaultOutOfScopeMessage
	}
	return &Service{builder: b, completer: c, outOfScope: outOfScope, logger: log}
}

// Reply builds the context and asks the model. Out-of-scope turns are answered
// with the configured message without calling the model.
func (s *Service) Reply(ctx context.Context, req contextbuild.Request) (Reply, error) {
	built, err := s.builder.Build(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("build context: %w", err)
	}

	if built.Status == scope.PromptOutOfScope {
		metrics.CompletionsTotal.WithLabelValues("out_of_scope").Inc()
		text := req.Settings.OutOfScopeMessage
		if text == "" {
			text = s.outOfScope
		}
		return Reply{Status: built.Status, Text: text, Stats: built.Stats}, nil
	}

	text, err := s.completer.Complete(ctx, built.Messages)
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx, s.logger).Error("Completion failed", zap.Error(err))
		return Reply{}, fmt.Errorf("%w: %w", domain.ErrCompletionFailed, err)
	}

	metrics.CompletionsTotal.WithLabelValues("ok").Inc()
	return Reply{Status: built.Status, Text: text, Stats: built.Stats}, nil
}
