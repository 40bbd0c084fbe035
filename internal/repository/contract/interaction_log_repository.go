package contract

import (
	"context"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/repository/specification"
)

type QuestionCount struct {
	Question string
	Count    int
}

// InteractionStats is the aggregate the admin stats endpoint reports.
type InteractionStats struct {
	Total                int64
	CacheHits            int64
	AvgLatencyCachedMs   float64
	AvgLatencyUncachedMs float64
	DistinctSessions     int64
	TopQuestions         []QuestionCount
}

type InteractionLogRepository interface {
	Create(ctx context.Context, log *entity.InteractionLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.InteractionLog, error)
	Aggregate(ctx context.Context) (*InteractionStats, error)
	DeleteAll(ctx context.Context) error
}
