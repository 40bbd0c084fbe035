package semcache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[text]
	if !ok {
		vec = []float32{1, 0}
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: vec},
	}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }
func (nopLogger) GetLogs(string, int, int) ([]logger.LogEntry, error) {
	return nil, nil
}

// unit vector at a given cosine similarity to [1, 0]
func vecAtSimilarity(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func newTestCache(vectors map[string][]float32) *Cache {
	return New(&fakeEmbedder{vectors: vectors}, nil, nopLogger{})
}

func TestGetOnEmptyCache(t *testing.T) {
	c := newTestCache(nil)

	res, err := c.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestPutThenGetIdenticalQuestion(t *testing.T) {
	c := newTestCache(map[string][]float32{
		"what is freespan?": {1, 0},
	})

	require.NoError(t, c.Put(context.Background(), "what is freespan?", "an unsupported span", []string{"r1 s.3"}))

	res, err := c.Get(context.Background(), "what is freespan?")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "an unsupported span", res.Answer)
	assert.Equal(t, []string{"r1 s.3"}, res.Sources)
}

func TestThresholdBoundary(t *testing.T) {
	c := newTestCache(map[string][]float32{
		"original": {1, 0},
		"at":       vecAtSimilarity(0.97),
		"below":    vecAtSimilarity(0.96),
	})
	require.NoError(t, c.Put(context.Background(), "original", "answer", nil))

	res, err := c.Get(context.Background(), "at")
	require.NoError(t, err)
	assert.NotNil(t, res, "similarity exactly at threshold is a hit")

	res, err = c.Get(context.Background(), "below")
	require.NoError(t, err)
	assert.Nil(t, res, "similarity below threshold is a miss")
}

func TestGetIsIdempotent(t *testing.T) {
	c := newTestCache(map[string][]float32{"q": {1, 0}})
	require.NoError(t, c.Put(context.Background(), "q", "a", nil))

	first, err := c.Get(context.Background(), "q")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), c.TotalHits())
}

func TestEvictionDropsOldest(t *testing.T) {
	vectors := make(map[string][]float32, MaxSize+1)
	for i := 0; i <= MaxSize; i++ {
		// Orthogonal-ish distinct vectors so nothing collides.
		angle := float64(i) / float64(MaxSize+1) * math.Pi
		vectors[fmt.Sprintf("q%d", i)] = []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
	}
	c := newTestCache(vectors)

	for i := 0; i <= MaxSize; i++ {
		require.NoError(t, c.Put(context.Background(), fmt.Sprintf("q%d", i), "a", nil))
	}

	assert.Equal(t, MaxSize, c.Size())

	// q0 was the oldest entry and must be gone.
	found := false
	for _, entry := range c.entries {
		if entry.Question == "q0" {
			found = true
		}
	}
	assert.False(t, found)
}

func TestEmbeddingErrorPropagates(t *testing.T) {
	c := New(&fakeEmbedder{err: errors.New("provider down")}, nil, nopLogger{})
	c.entries = []*Entry{{Question: "q", Answer: "a", Embedding: []float32{1, 0}}}

	_, err := c.Get(context.Background(), "q")
	assert.Error(t, err)

	err = c.Put(context.Background(), "q2", "a2", nil)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	c := newTestCache(map[string][]float32{"q": {1, 0}})
	require.NoError(t, c.Put(context.Background(), "q", "a", nil))

	c.Clear(context.Background())
	assert.Equal(t, 0, c.Size())

	res, err := c.Get(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, res)
}
