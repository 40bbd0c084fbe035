package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedProvider memoizes embeddings from an inner provider. Repeated
// lookups of the same text (the agent embeds each question twice, once
// for the semantic cache and once for retrieval) hit the LRU instead of
// the remote API.
type CachedProvider struct {
	inner EmbeddingProvider
	cache *expirable.LRU[string, []float32]
}

func NewCachedProvider(inner EmbeddingProvider, size int, ttl time.Duration) *CachedProvider {
	if size <= 0 {
		size = 512
	}
	return &CachedProvider{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (p *CachedProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	key := cacheKey(taskType, text)
	if values, ok := p.cache.Get(key); ok {
		return &EmbeddingResponse{
			Embedding: EmbeddingResponseEmbedding{Values: values},
		}, nil
	}

	res, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}

	p.cache.Add(key, res.Embedding.Values)
	return res, nil
}

func cacheKey(taskType, text string) string {
	h := sha256.Sum256([]byte(taskType + "\x00" + text))
	return hex.EncodeToString(h[:])
}
