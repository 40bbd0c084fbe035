package contract

import (
	"context"

	"subsea-agent-be/internal/entity"
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
}
