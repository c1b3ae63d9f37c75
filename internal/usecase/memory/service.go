// Package memory recalls and records facts remembered about a conversation.
package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/fact"
	"github.com/kailas-cloud/ragpack/internal/domain/fingerprint"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
)

// Service builds the memory block and writes fact updates.
type Service struct {
	store  FactStore
	logger *zap.Logger
}

// New creates a memory service.
func New(store FactStore, log *zap.Logger) *Service {
	return &Service{store: store, logger: log}
}

// Append looks up facts for the conversation and renders them as a system message.
// The most recent fingerprint that has facts wins. The second result is false when
// there is nothing to add, including when the store fails: memory is best effort.
func (s *Service) Append(ctx context.Context, msgs []message.Message, prefix string) (message.Message, bool) {
	log := logger.FromContext(ctx, s.logger)

	fps := fingerprint.Compute(msgs)
	if len(fps) == 0 {
		return message.Message{}, false
	}

	lists, err := s.store.Get(ctx, fps)
	if err != nil {
		metrics.MemoryLookupsTotal.WithLabelValues("error").Inc()
		log.Warn("Fact lookup failed, continuing without memory", zap.Error(err))
		return message.Message{}, false
	}

	for i, facts := range lists {
		if len(facts) == 0 {
			continue
		}
		metrics.MemoryLookupsTotal.WithLabelValues("hit").Inc()
		log.Debug("Facts recalled",
			zap.Stringer("fingerprint", fps[i]),
			zap.Int("window", i),
			zap.Int("facts", len(facts)),
		)
		return message.Must(message.System, render(prefix, facts)), true
	}

	metrics.MemoryLookupsTotal.WithLabelValues("miss").Inc()
	return message.Message{}, false
}

// Remember replaces the facts of the conversation under all of its fingerprints.
func (s *Service) Remember(ctx context.Context, msgs []message.Message, items []string) error {
	fps := fingerprint.Compute(msgs)
	if len(fps) == 0 {
		return fmt.Errorf("%w: conversation has no user messages", domain.ErrInvalidRequest)
	}

	facts := fact.FromStrings(items)
	if err := s.store.Update(ctx, facts, fps); err != nil {
		return fmt.Errorf("update facts: %w", err)
	}

	logger.FromContext(ctx, s.logger).Info("Facts updated",
		zap.Stringer("fingerprint", fps[0]),
		zap.Int("aliases", len(fps)-1),
		zap.Int("facts", len(facts)),
	)
	return nil
}

func render(prefix string, facts []fact.Fact) string {
	body := fact.Format(facts)
	if strings.TrimSpace(prefix) == "" {
		return body
	}
	return prefix + "\n" + body
}
