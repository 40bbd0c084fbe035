package contract

import (
	"context"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/repository/specification"
)

// ScoredReportChunk wraps ReportChunk with its cosine distance to the
// query vector (0.0 = identical, 2.0 = opposite).
type ScoredReportChunk struct {
	Chunk    *entity.ReportChunk
	Distance float64
}

type ReportChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.ReportChunk) error
	DeleteByReport(ctx context.Context, report string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReportChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore returns the nearest chunks ordered by cosine distance
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*ScoredReportChunk, error)
}
