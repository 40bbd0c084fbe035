package implementation

import (
	"context"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/mapper"
	"subsea-agent-be/internal/model"
	"subsea-agent-be/internal/repository/contract"

	"gorm.io/gorm"
)

type SessionTurnRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionTurnMapper
}

func NewSessionTurnRepository(db *gorm.DB) contract.SessionTurnRepository {
	return &SessionTurnRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionTurnMapper(),
	}
}

func (r *SessionTurnRepositoryImpl) Create(ctx context.Context, turn *entity.SessionTurn) error {
	m := r.mapper.ToModel(turn)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*turn = *r.mapper.ToEntity(m)
	return nil
}

func (r *SessionTurnRepositoryImpl) FindRecentBySession(ctx context.Context, sessionID string, limit int) ([]*entity.SessionTurn, error) {
	if limit <= 0 {
		limit = 12
	}

	// Newest N rows, then reversed so callers get chronological order.
	var models []*model.SessionTurn
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SessionTurnRepositoryImpl) DeleteBySession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.SessionTurn{}).Error
}
