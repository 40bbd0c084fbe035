package unitofwork

import (
	"context"

	"subsea-agent-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ReportChunkRepository() contract.ReportChunkRepository
	InteractionLogRepository() contract.InteractionLogRepository
	FeedbackRepository() contract.FeedbackRepository
	SessionTurnRepository() contract.SessionTurnRepository
}
