package embcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var gotTTL time.Duration
	ms.setFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		gotTTL = ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if gotTTL != time.Hour {
		t.Fatalf("expected cache put with 1h TTL, got %v", gotTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := []byte(db.EncodeVector([]float32{0.4, 0.5, 0.6}))
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Fatalf("inner embedder called %d times on hit", inner.calls)
	}
}

func TestEmbed_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || result.Embedding[0] != 1 {
		t.Fatalf("expected fallback to inner, calls=%d result=%v", inner.calls, result.Embedding)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		setCalled = true
		return nil
	}

	if _, err := ce.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if setCalled {
		t.Fatal("nothing should be cached on provider error")
	}
}

func TestEmbed_StoreErrorsAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: errors.New("conn reset")}
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return &db.Error{Op: db.OpSet, Err: errors.New("conn reset")}
	}

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
}

func TestCacheKey_ScopedByModel(t *testing.T) {
	a := New(&mockEmbedder{}, &mockKVStore{}, Options{Model: "model-a", TTL: time.Hour}, zap.NewNop())
	b := New(&mockEmbedder{}, &mockKVStore{}, Options{Model: "model-b", TTL: time.Hour}, zap.NewNop())

	if a.cacheKey("same text") == b.cacheKey("same text") {
		t.Fatal("cache keys must differ across models")
	}
	if a.cacheKey("one") == a.cacheKey("two") {
		t.Fatal("cache keys must differ across texts")
	}
}

func TestHealthCheck_Forwards(t *testing.T) {
	inner := &mockEmbedder{healthErr: errors.New("down")}
	ce, _ := newTestCachedEmbedder(t, inner)
	if err := ce.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected forwarded health error")
	}
}

func TestEmbed_WrongSizeCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	ms := &mockKVStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return []byte(db.EncodeVector([]float32{9, 9})), nil
	}}
	ce := New(inner, ms, Options{Model: "m", TTL: time.Hour, Dimensions: 3}, zap.NewNop())

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || len(result.Embedding) != 3 {
		t.Fatalf("expected fresh embedding, calls=%d result=%v", inner.calls, result.Embedding)
	}
}

// blockingEmbedder holds every call until release is closed.
type blockingEmbedder struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	<-b.release
	return domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 7}, nil
}

func TestEmbed_ConcurrentMissesShareOneCall(t *testing.T) {
	inner := &blockingEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	cacheTotal := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	ce := New(inner, &mockKVStore{}, Options{Model: "m", TTL: time.Hour, CacheTotal: cacheTotal}, zap.NewNop())

	const callers = 4
	results := make(chan domain.EmbeddingResult, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r, _ := ce.Embed(context.Background(), "same")
		results <- r
	}()
	<-inner.entered
	for range callers - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _ := ce.Embed(context.Background(), "same")
			results <- r
		}()
	}
	// Let the followers reach the singleflight group before the leader returns.
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()
	close(results)

	if n := inner.calls.Load(); n != 1 {
		t.Fatalf("inner called %d times, want 1", n)
	}
	billed := 0
	for r := range results {
		billed += r.TotalTokens
	}
	if billed != 7 {
		t.Errorf("tokens billed across callers = %d, want 7", billed)
	}
	if v := testutil.ToFloat64(cacheTotal.WithLabelValues("shared")); v != callers-1 {
		t.Errorf("shared = %v, want %d", v, callers-1)
	}
	if v := testutil.ToFloat64(cacheTotal.WithLabelValues("miss")); v != 1 {
		t.Errorf("miss = %v, want 1", v)
	}
}

func TestEmbed_CancelledLeaderDoesNotFailFollowers(t *testing.T) {
	inner := &blockingEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	ce := New(inner, &mockKVStore{}, Options{Model: "m", TTL: time.Hour}, zap.NewNop())

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := ce.Embed(leaderCtx, "same")
		leaderErr <- err
	}()
	<-inner.entered

	type outcome struct {
		res domain.EmbeddingResult
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		r, err := ce.Embed(context.Background(), "same")
		follower <- outcome{r, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader error = %v, want context.Canceled", err)
	}

	close(inner.release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("follower error: %v", got.err)
	}
	if len(got.res.Embedding) != 1 {
		t.Errorf("follower embedding = %v", got.res.Embedding)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner called %d times, want 1", n)
	}
}
