package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/repository/contract"
	"subsea-agent-be/internal/repository/specification"
	"subsea-agent-be/pkg/embedding"
	"subsea-agent-be/pkg/rerank"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{}

func (stubEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2}},
	}, nil
}

type stubChunkRepo struct {
	chunks    []*contract.ScoredReportChunk
	gotLimit  int
	searchErr error
}

func (s *stubChunkRepo) CreateBulk(ctx context.Context, chunks []*entity.ReportChunk) error {
	return nil
}
func (s *stubChunkRepo) DeleteByReport(ctx context.Context, report string) error { return nil }
func (s *stubChunkRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReportChunk, error) {
	return nil, nil
}
func (s *stubChunkRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}
func (s *stubChunkRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, limit int) ([]*contract.ScoredReportChunk, error) {
	s.gotLimit = limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if len(s.chunks) > limit {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

type stubReranker struct {
	results []rerank.Result
	err     error
}

func (s *stubReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]rerank.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
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

func makeChunks(n int) []*contract.ScoredReportChunk {
	chunks := make([]*contract.ScoredReportChunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = &contract.ScoredReportChunk{
			Chunk: &entity.ReportChunk{
				Report:  "pipeline-survey-2023",
				Page:    i + 1,
				Content: fmt.Sprintf("finding %d", i),
			},
			Distance: 0.1 * float64(i+1),
		}
	}
	return chunks
}

func TestRetrieveWithoutRerank(t *testing.T) {
	repo := &stubChunkRepo{chunks: makeChunks(10)}
	p := NewPipeline(repo, stubEmbedder{}, nil, nopLogger{})

	passages, err := p.Retrieve(context.Background(), "corrosion", 0, false)
	require.NoError(t, err)

	assert.Equal(t, TopK, repo.gotLimit)
	assert.Len(t, passages, TopK)
	assert.Equal(t, "pipeline-survey-2023 s.1", passages[0].SourceLabel)
}

func TestRetrieveWithRerankWidensAndNarrows(t *testing.T) {
	repo := &stubChunkRepo{chunks: makeChunks(15)}
	reranker := &stubReranker{results: []rerank.Result{
		{Index: 7, Score: 0.9},
		{Index: 2, Score: 0.8},
		{Index: 0, Score: 0.7},
	}}
	p := NewPipeline(repo, stubEmbedder{}, reranker, nopLogger{})

	passages, err := p.Retrieve(context.Background(), "corrosion", TopK, true)
	require.NoError(t, err)

	assert.Equal(t, TopK*3, repo.gotLimit)
	require.Len(t, passages, RerankTopK)
	// Reranker ordering wins over distance ordering.
	assert.Equal(t, "finding 7", passages[0].Content)
	assert.Equal(t, "finding 2", passages[1].Content)
	assert.Equal(t, "finding 0", passages[2].Content)
}

func TestRetrieveRerankFailureFallsBack(t *testing.T) {
	repo := &stubChunkRepo{chunks: makeChunks(15)}
	reranker := &stubReranker{err: errors.New("reranker down")}
	p := NewPipeline(repo, stubEmbedder{}, reranker, nopLogger{})

	passages, err := p.Retrieve(context.Background(), "corrosion", TopK, true)
	require.NoError(t, err)

	// Distance order, truncated to k.
	require.Len(t, passages, TopK)
	assert.Equal(t, "finding 0", passages[0].Content)
	assert.Equal(t, "finding 4", passages[4].Content)
}

func TestRetrieveEmptyStore(t *testing.T) {
	repo := &stubChunkRepo{}
	p := NewPipeline(repo, stubEmbedder{}, nil, nopLogger{})

	passages, err := p.Retrieve(context.Background(), "anything", 5, false)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestRetrieveTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 1200)
	repo := &stubChunkRepo{chunks: []*contract.ScoredReportChunk{{
		Chunk:    &entity.ReportChunk{Report: "r", Page: 1, Content: long},
		Distance: 0.25,
	}}}
	p := NewPipeline(repo, stubEmbedder{}, nil, nopLogger{})

	passages, err := p.Retrieve(context.Background(), "q", 1, false)
	require.NoError(t, err)
	assert.Len(t, []rune(passages[0].Content), maxContentRunes)
}

func TestBuildContextBlock(t *testing.T) {
	passages := []entity.RetrievedPassage{
		{SourceLabel: "r1 s.2", Content: "first finding"},
		{SourceLabel: "r2 s.9", Content: "second finding"},
	}

	block := BuildContextBlock(passages)
	assert.Equal(t, "[r1 s.2]\nfirst finding\n\n[r2 s.9]\nsecond finding", block)
}

func TestBuildContextBlockEmpty(t *testing.T) {
	assert.Equal(t, "", BuildContextBlock(nil))
}
