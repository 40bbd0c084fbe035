package semcache

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/pkg/embedding"

	"github.com/redis/go-redis/v9"
)

const (
	// MaxSize caps the number of cached answers. The oldest entry is
	// evicted first regardless of how often it was hit.
	MaxSize = 200
	// SimilarityThreshold is the cosine similarity a question must reach
	// against a cached question to count as a hit.
	SimilarityThreshold = 0.97

	redisKey = "semcache:entries"
)

type Entry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
	Embedding []float32 `json:"embedding"`
	Timestamp time.Time `json:"timestamp"`
	Hits      int       `json:"hits"`
}

// Result is what a cache hit returns. Embeddings and hit counts stay internal.
type Result struct {
	Answer  string
	Sources []string
}

// Cache answers questions that are semantically close to ones already
// answered. Entries live in memory; redis keeps a write-through copy so
// the cache survives restarts.
type Cache struct {
	mu       sync.Mutex
	entries  []*Entry
	embedder embedding.EmbeddingProvider
	redis    *redis.Client // nil disables persistence
	log      logger.ILogger
}

func New(embedder embedding.EmbeddingProvider, redisClient *redis.Client, log logger.ILogger) *Cache {
	return &Cache{
		embedder: embedder,
		redis:    redisClient,
		log:      log,
	}
}

func (c *Cache) embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.embedder.Generate(ctx, text, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	norm := math.Sqrt(normA) * math.Sqrt(normB)
	if norm == 0 {
		return 0
	}
	return dot / norm
}

// Get returns the cached answer whose question is most similar to
// question, or nil when nothing reaches the threshold. Embedding
// failures propagate so the caller falls through to the full pipeline.
func (c *Cache) Get(ctx context.Context, question string) (*Result, error) {
	c.mu.Lock()
	empty := len(c.entries) == 0
	c.mu.Unlock()
	if empty {
		return nil, nil
	}

	qEmb, err := c.embed(ctx, question)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bestSim := 0.0
	var best *Entry
	for _, entry := range c.entries {
		sim := cosineSimilarity(qEmb, entry.Embedding)
		if sim > bestSim {
			bestSim = sim
			best = entry
		}
	}

	if best != nil && bestSim >= SimilarityThreshold {
		best.Hits++
		c.log.Info("semcache", "cache hit", map[string]interface{}{
			"similarity": bestSim,
			"hits":       best.Hits,
		})
		return &Result{Answer: best.Answer, Sources: best.Sources}, nil
	}
	return nil, nil
}

// Put stores a fresh answer, evicting the oldest entry when full.
func (c *Cache) Put(ctx context.Context, question, answer string, sources []string) error {
	qEmb, err := c.embed(ctx, question)
	if err != nil {
		return err
	}

	entry := &Entry{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Embedding: qEmb,
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	if len(c.entries) >= MaxSize {
		sort.Slice(c.entries, func(i, j int) bool {
			return c.entries[i].Timestamp.Before(c.entries[j].Timestamp)
		})
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, entry)
	total := len(c.entries)
	c.mu.Unlock()

	c.log.Info("semcache", "cached answer", map[string]interface{}{
		"total": total,
	})
	c.persist(ctx, entry)
	return nil
}

// persist appends the entry to the redis backup. Failures are logged and
// ignored, the in-memory cache stays authoritative.
func (c *Cache) persist(ctx context.Context, entry *Entry) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	pipe := c.redis.Pipeline()
	pipe.RPush(ctx, redisKey, raw)
	pipe.LTrim(ctx, redisKey, -int64(MaxSize), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("semcache", "redis persist failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Restore loads the redis backup into memory. Called once at startup.
func (c *Cache) Restore(ctx context.Context) {
	if c.redis == nil {
		return
	}
	raws, err := c.redis.LRange(ctx, redisKey, 0, -1).Result()
	if err != nil {
		c.log.Warn("semcache", "redis restore failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	var entries []*Entry
	for _, raw := range raws {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	if len(entries) > MaxSize {
		entries = entries[len(entries)-MaxSize:]
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.log.Info("semcache", "restored cache from redis", map[string]interface{}{
		"entries": len(entries),
	})
}

func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKey).Err(); err != nil {
			c.log.Warn("semcache", "redis clear failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalHits sums per-entry hit counters, surfaced by the stats endpoint.
func (c *Cache) TotalHits() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, entry := range c.entries {
		total += int64(entry.Hits)
	}
	return total
}
