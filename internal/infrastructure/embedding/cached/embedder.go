package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

// Embedder memoises an inner embedder by model and text hash. Concurrent
// misses for the same text share one model call. Cache errors are logged and
// never fail the embedding.
type Embedder struct {
	inner ports.Embedder
	cache ports.EmbeddingCache
	model string
	group singleflight.Group
}

func New(inner ports.Embedder, cache ports.EmbeddingCache, model string) *Embedder {
	return &Embedder{inner: inner, cache: cache, model: model}
}

func (e *Embedder) Dimension() int { return e.inner.Dimension() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	if vector, ok, err := e.cache.Get(ctx, key); err != nil {
		slog.Warn("embedding_cache_get_failed", "error", err)
	} else if ok && len(vector) == e.inner.Dimension() {
		return vector, nil
	}

	out, err, _ := e.group.Do(key, func() (any, error) {
		vector, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := e.cache.Set(context.WithoutCancel(ctx), key, vector); err != nil {
			slog.Warn("embedding_cache_set_failed", "error", err)
		}
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]float32(nil), out.([]float32)...), nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.model + ":" + hex.EncodeToString(sum[:])
}
