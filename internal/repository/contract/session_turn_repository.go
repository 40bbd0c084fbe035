package contract

import (
	"context"

	"subsea-agent-be/internal/entity"
)

type SessionTurnRepository interface {
	Create(ctx context.Context, turn *entity.SessionTurn) error
	// FindRecentBySession returns up to limit turns, oldest first, so a
	// restarted server can rebuild the in-memory history.
	FindRecentBySession(ctx context.Context, sessionID string, limit int) ([]*entity.SessionTurn, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}
