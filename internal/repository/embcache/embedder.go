// Package embcache caches query embeddings in the key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/logger"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options tune the cache.
type Options struct {
	Model string
	TTL   time.Duration
	// Dimensions rejects cached vectors of another size; 0 accepts any size.
	Dimensions int
	// CacheTotal counts lookups with label "result" ("hit"/"miss"/"shared"); nil disables it.
	CacheTotal *prometheus.CounterVec
	// CallTimeout bounds a provider call on a miss; 0 uses DefaultCallTimeout.
	CallTimeout time.Duration
}

// DefaultCallTimeout bounds a provider call when Options.CallTimeout is unset.
const DefaultCallTimeout = 30 * time.Second

// CachedEmbedder caches query embeddings in a key-value store.
// Keys are scoped by model so switching models never serves stale vectors.
// Concurrent misses for the same query share one provider call.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	opts   Options
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a caching decorator.
func New(inner domain.Embedder, s store, opts Options, log *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		store:  s,
		opts:   opts,
		logger: log,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContext(ctx, c.logger)
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, log, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	// The call outlives any single caller: a caller that gives up must not fail the others.
	var leader bool
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout())
		defer cancel()

		result, err := c.inner.Embed(callCtx, text)
		if err != nil {
			return domain.EmbeddingResult{}, err
		}
		c.putToCache(callCtx, log, key, result.Embedding)
		return result, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", ctx.Err())
	case res = <-ch:
	}

	// leader is written before the result is delivered on ch.
	if leader {
		c.incCache("miss")
	} else {
		c.incCache("shared")
	}
	if res.Err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", res.Err)
	}

	result := res.Val.(domain.EmbeddingResult) //nolint:forcetypeassert // the group only stores EmbeddingResult
	if !leader {
		// Only the caller that made the request is billed for the tokens.
		result.PromptTokens, result.TotalTokens = 0, 0
	}
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) callTimeout() time.Duration {
	if c.opts.CallTimeout > 0 {
		return c.opts.CallTimeout
	}
	return DefaultCallTimeout
}

func (c *CachedEmbedder) incCache(result string) {
	if c.opts.CacheTotal != nil {
		c.opts.CacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.opts.Model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, log *zap.Logger, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			log.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	vec := db.DecodeVector(string(data))
	if vec == nil {
		log.Warn("Discarding malformed cached embedding", zap.String("key", key), zap.Int("bytes", len(data)))
		return nil, false
	}
	if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
		log.Warn("Discarding cached embedding of wrong size",
			zap.String("key", key),
			zap.Int("dimensions", len(vec)),
			zap.Int("want", c.opts.Dimensions),
		)
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, log *zap.Logger, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.opts.TTL); err != nil {
		log.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
