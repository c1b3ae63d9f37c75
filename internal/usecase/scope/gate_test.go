package scope

import (
	"context"
	"math"
	"slices"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
)

func conversationOf(n int) []message.Message {
	out := make([]message.Message, n)
	for i := range out {
		role := message.User
		if i%2 == 1 {
			role = message.Assistant
		}
		out[i] = message.Must(role, "turn")
	}
	return out
}

func cluster() [][]float32 {
	return [][]float32{
		{1, 0.1, 0},
		{1, 0, 0.1},
		{1, 0.1, 0.1},
		{1, 0.05, 0},
		{1, 0, 0.05},
		{1, 0.08, 0.02},
	}
}

func newTestGate() *Gate {
	return New(DefaultConfig(), zap.NewNop())
}

func TestEvaluate_ShortConversationAlwaysInScope(t *testing.T) {
	g := newTestGate()
	for n := 0; n <= 4; n++ {
		d := g.Evaluate(context.Background(), conversationOf(n), []float32{0, 1, 0}, cluster())
		if d.Outcome != ContextAdded || d.Reason != ReasonShortConversation {
			t.Errorf("n=%d: decision = %+v, want short-conversation pass", n, d)
		}
	}
}

func TestEvaluate_InsufficientEvidence(t *testing.T) {
	g := newTestGate()
	msgs := conversationOf(6)

	for name, cands := range map[string][][]float32{
		"none":      nil,
		"one":       {{1, 0, 0}},
		"one-valid": {{1, 0, 0}, nil},
	} {
		d := g.Evaluate(context.Background(), msgs, []float32{0, 1, 0}, cands)
		if d.Outcome != ContextAdded || d.Reason != ReasonInsufficientEvidence {
			t.Errorf("%s: decision = %+v", name, d)
		}
	}
}

func TestEvaluate_QueryInsideBand(t *testing.T) {
	d := newTestGate().Evaluate(context.Background(), conversationOf(6), []float32{1, 0.05, 0.05}, cluster())
	if d.Outcome != ContextAdded || d.Reason != ReasonWithinBand {
		t.Fatalf("decision = %+v, want in scope", d)
	}
	if d.Lower >= d.Upper {
		t.Errorf("band [%f, %f] is empty", d.Lower, d.Upper)
	}
}

func TestEvaluate_QueryOutsideBand(t *testing.T) {
	g := newTestGate()
	for _, q := range [][]float32{{0, 1, 0}, {1, 0.5, 0.5}} {
		d := g.Evaluate(context.Background(), conversationOf(6), q, cluster())
		if d.Outcome != PromptOutOfScope || d.InScope() {
			t.Errorf("query %v: decision = %+v, want out of scope", q, d)
		}
	}
}

func TestEvaluate_ZeroVectorsNeverNaN(t *testing.T) {
	cands := [][]float32{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	d := newTestGate().Evaluate(context.Background(), conversationOf(6), []float32{0, 0, 0}, cands)
	if math.IsNaN(d.AvgSimilarity) || math.IsNaN(d.Lower) || math.IsNaN(d.Upper) {
		t.Fatalf("NaN in decision: %+v", d)
	}
	if d.Outcome != ContextAdded {
		t.Errorf("degenerate input should be in scope, got %+v", d)
	}
}

func TestEvaluate_OnlyTopCandidatesCount(t *testing.T) {
	cands := append(cluster(), []float32{0, 1, 0}, []float32{0, 0, 1})
	g := New(Config{MinMessages: 4, MaxCandidates: 6, IQRMultiplier: 1.5, ErrorBuffer: 0.5}, zap.NewNop())

	d := g.Evaluate(context.Background(), conversationOf(6), []float32{1, 0.05, 0.05}, cands)
	if d.Outcome != ContextAdded {
		t.Fatalf("low-ranked outliers beyond MaxCandidates changed the verdict: %+v", d)
	}
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	g := New(Config{MinMessages: -1}, zap.NewNop())
	if g.cfg.MinMessages != 4 || g.cfg.IQRMultiplier != 1.5 {
		t.Errorf("cfg = %+v", g.cfg)
	}
	if g.MaxCandidates() != 25 {
		t.Errorf("MaxCandidates = %d, want 25", g.MaxCandidates())
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical = %f", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal = %f", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero norm = %f", got)
	}
}

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	if q := quantile(s, 0.25); q != 1.75 {
		t.Errorf("Q1 = %f, want 1.75", q)
	}
	if q := quantile(s, 0.75); q != 3.25 {
		t.Errorf("Q3 = %f, want 3.25", q)
	}
	if q := quantile(nil, 0.5); q != 0 {
		t.Errorf("empty = %f", q)
	}
}

func TestWithoutOutliers(t *testing.T) {
	got := withoutOutliers([]float64{0.5, 0.52, 0.51, 0.49, 0.5, -0.9}, 1.5)
	want := []float64{0.5, 0.52, 0.51, 0.49, 0.5}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMeanStddev(t *testing.T) {
	m, sd := meanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if m != 5 || sd != 2 {
		t.Errorf("mean=%f sd=%f, want 5/2", m, sd)
	}
}
