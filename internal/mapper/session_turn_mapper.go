package mapper

import (
	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/model"
)

type SessionTurnMapper struct{}

func NewSessionTurnMapper() *SessionTurnMapper {
	return &SessionTurnMapper{}
}

func (m *SessionTurnMapper) ToEntity(t *model.SessionTurn) *entity.SessionTurn {
	if t == nil {
		return nil
	}
	return &entity.SessionTurn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Role:      t.Role,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
}

func (m *SessionTurnMapper) ToModel(t *entity.SessionTurn) *model.SessionTurn {
	if t == nil {
		return nil
	}
	return &model.SessionTurn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Role:      t.Role,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
}

func (m *SessionTurnMapper) ToEntities(turns []*model.SessionTurn) []*entity.SessionTurn {
	entities := make([]*entity.SessionTurn, len(turns))
	for i, t := range turns {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
