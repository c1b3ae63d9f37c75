package memory

import (
	"context"

	"github.com/kailas-cloud/ragpack/internal/domain/fact"
	"github.com/kailas-cloud/ragpack/internal/domain/fingerprint"
)

// FactStore reads and replaces fact lists keyed by conversation fingerprint.
type FactStore interface {
	Get(ctx context.Context, fps []fingerprint.Fingerprint) ([][]fact.Fact, error)
	Update(ctx context.Context, facts []fact.Fact, fps []fingerprint.Fingerprint) error
}
