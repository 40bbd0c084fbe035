package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/repository/contract"
	"subsea-agent-be/pkg/embedding"
	"subsea-agent-be/pkg/rerank"
)

const (
	// TopK passages returned by plain vector search.
	TopK = 5
	// RerankTopK passages survive the cross-encoder pass.
	RerankTopK = 3
	// candidateMultiplier widens the vector search when a rerank pass
	// will narrow the set afterwards.
	candidateMultiplier = 3
	// maxContentRunes truncates passage content for display and prompts.
	maxContentRunes = 500
)

// Reranker scores documents against a query, best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]rerank.Result, error)
}

// Pipeline embeds a query, vector-searches report chunks and optionally
// reranks them with a cross-encoder.
type Pipeline struct {
	chunks   contract.ReportChunkRepository
	embedder embedding.EmbeddingProvider
	reranker Reranker // nil disables reranking
	log      logger.ILogger
}

func NewPipeline(chunks contract.ReportChunkRepository, embedder embedding.EmbeddingProvider, reranker Reranker, log logger.ILogger) *Pipeline {
	return &Pipeline{
		chunks:   chunks,
		embedder: embedder,
		reranker: reranker,
		log:      log,
	}
}

// SourceLabel formats the citation label for a report page.
func SourceLabel(report string, page int) string {
	return fmt.Sprintf("%s s.%d", report, page)
}

// Retrieve returns the top passages for query. k <= 0 uses TopK. When
// useRerank is set and a reranker is configured, k*3 candidates are
// fetched and the cross-encoder keeps the best RerankTopK; a reranker
// failure falls back to plain distance order.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int, useRerank bool) ([]entity.RetrievedPassage, error) {
	if k <= 0 {
		k = TopK
	}
	doRerank := useRerank && p.reranker != nil

	fetch := k
	if doRerank {
		fetch = k * candidateMultiplier
	}

	embRes, err := p.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := p.chunks.SearchSimilarWithScore(ctx, embRes.Embedding.Values, fetch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return []entity.RetrievedPassage{}, nil
	}

	ordered := candidates
	limit := k

	if doRerank {
		documents := make([]string, len(candidates))
		for i, c := range candidates {
			documents[i] = c.Chunk.Content
		}

		results, rerr := p.reranker.Rerank(ctx, query, documents, RerankTopK)
		if rerr != nil {
			p.log.Warn("retrieval", "rerank failed, keeping distance order", map[string]interface{}{
				"error": rerr.Error(),
			})
		} else {
			reranked := make([]*contract.ScoredReportChunk, 0, len(results))
			for _, r := range results {
				reranked = append(reranked, candidates[r.Index])
			}
			ordered = reranked
			limit = RerankTopK
		}
	}

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	passages := make([]entity.RetrievedPassage, len(ordered))
	for i, c := range ordered {
		passages[i] = entity.RetrievedPassage{
			Report:      c.Chunk.Report,
			Page:        c.Chunk.Page,
			Content:     truncateRunes(c.Chunk.Content, maxContentRunes),
			SourceLabel: SourceLabel(c.Chunk.Report, c.Chunk.Page),
			Score:       math.Round(c.Distance*1000) / 1000,
		}
	}
	return passages, nil
}

// BuildContextBlock renders passages as labeled blocks for the prompt.
func BuildContextBlock(passages []entity.RetrievedPassage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("[%s]\n%s", p.SourceLabel, p.Content)
	}
	return strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
