package request

import (
	"fmt"

	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/domain/search/mode"
	"github.com/kailas-cloud/ragpack/internal/domain/term"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength = 8192
	DefaultSize    = 25
	MaxSize        = 200
	// DefaultRRFConstant is the reciprocal rank fusion constant (Cormack et al. 2009).
	DefaultRRFConstant = 60
	// DefaultRRFWindow is how many hits of each sub-query take part in fusion.
	DefaultRRFWindow = 50
)

// Fusion selects the server-side rank fusion pipeline.
type Fusion struct {
	Constant int
	Window   int
}

// DefaultFusion returns RRF with the standard constant and window.
func DefaultFusion() Fusion {
	return Fusion{Constant: DefaultRRFConstant, Window: DefaultRRFWindow}
}

// Hybrid is a validated lexical+vector search request.
type Hybrid struct {
	query     string
	matchMode mode.Mode
	boosts    []term.Term
	filters   filter.Expression
	vector    []float32
	k         int
	size      int
	fusion    Fusion
}

// NewHybrid validates and normalizes hybrid search parameters.
// Defaults: mode=freetext, size=25, RRF(60, max(50, size)). The vector clause
// fetches k=window candidates so both sides fill the fusion window.
// Terms are expected to be capped and deduplicated by the caller.
func NewHybrid(
	query string,
	m mode.Mode,
	boosts []term.Term,
	filters filter.Expression,
	vector []float32,
	size int,
	fusion Fusion,
) (Hybrid, error) {
	if query == "" {
		return Hybrid{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Hybrid{}, fmt.Errorf("query too long (max %d bytes)", MaxQueryLength)
	}
	if len(vector) == 0 {
		return Hybrid{}, fmt.Errorf("query vector is required")
	}
	if m == "" {
		m = mode.Default
	}
	if !m.IsValid() {
		return Hybrid{}, fmt.Errorf("invalid match mode: %q", m)
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	if fusion.Constant <= 0 {
		fusion.Constant = DefaultRRFConstant
	}
	if fusion.Window <= 0 {
		fusion.Window = DefaultRRFWindow
	}
	if fusion.Window < size {
		fusion.Window = size
	}

	return Hybrid{
		query:     query,
		matchMode: m,
		boosts:    boosts,
		filters:   filters,
		vector:    vector,
		k:         fusion.Window,
		size:      size,
		fusion:    fusion,
	}, nil
}

// Query returns the raw query text.
func (r *Hybrid) Query() string { return r.query }

// MatchMode returns the lexical match strategy.
func (r *Hybrid) MatchMode() mode.Mode { return r.matchMode }

// Boosts returns every term used as a ranking boost, in priority order.
func (r *Hybrid) Boosts() []term.Term { return r.boosts }

// Mandatory returns the terms that must match in every hit.
func (r *Hybrid) Mandatory() []term.Term {
	var out []term.Term
	for _, t := range r.boosts {
		if t.Mandatory() {
			out = append(out, t)
		}
	}
	return out
}

// Filters returns the scope filter expression.
func (r *Hybrid) Filters() filter.Expression { return r.filters }

// Vector returns the query embedding.
func (r *Hybrid) Vector() []float32 { return r.vector }

// K returns the number of nearest neighbours requested from the vector sub-query.
func (r *Hybrid) K() int { return r.k }

// Size returns the maximum number of fused hits.
func (r *Hybrid) Size() int { return r.size }

// Fusion returns the rank fusion parameters.
func (r *Hybrid) Fusion() Fusion { return r.fusion }
