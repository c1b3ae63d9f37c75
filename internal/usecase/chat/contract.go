package chat

import (
	"context"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/usecase/contextbuild"
)

// ContextBuilder prepares the messages for a turn.
type ContextBuilder interface {
	Build(ctx context.Context, req contextbuild.Request) (contextbuild.Result, error)
}

// Completer calls the language model.
type Completer interface {
	Complete(ctx context.Context, msgs []message.Message) (string, error)
}
