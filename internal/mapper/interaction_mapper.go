package mapper

import (
	"encoding/json"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/model"

	"gorm.io/datatypes"
)

type InteractionLogMapper struct{}

func NewInteractionLogMapper() *InteractionLogMapper {
	return &InteractionLogMapper{}
}

func (m *InteractionLogMapper) ToEntity(l *model.InteractionLog) *entity.InteractionLog {
	if l == nil {
		return nil
	}

	var sources []string
	if len(l.Sources) > 0 {
		// A corrupt row should not break the admin log listing.
		_ = json.Unmarshal(l.Sources, &sources)
	}

	return &entity.InteractionLog{
		Id:             l.Id,
		SessionId:      l.SessionId,
		Question:       l.Question,
		Answer:         l.Answer,
		Sources:        sources,
		Cached:         l.Cached,
		ResponseTimeMs: l.ResponseTimeMs,
		CreatedAt:      l.CreatedAt,
	}
}

func (m *InteractionLogMapper) ToModel(l *entity.InteractionLog) *model.InteractionLog {
	if l == nil {
		return nil
	}

	sources := l.Sources
	if sources == nil {
		sources = []string{}
	}
	raw, _ := json.Marshal(sources)

	return &model.InteractionLog{
		Id:             l.Id,
		SessionId:      l.SessionId,
		Question:       l.Question,
		Answer:         l.Answer,
		Sources:        datatypes.JSON(raw),
		Cached:         l.Cached,
		ResponseTimeMs: l.ResponseTimeMs,
		CreatedAt:      l.CreatedAt,
	}
}

func (m *InteractionLogMapper) ToEntities(logs []*model.InteractionLog) []*entity.InteractionLog {
	entities := make([]*entity.InteractionLog, len(logs))
	for i, l := range logs {
		entities[i] = m.ToEntity(l)
	}
	return entities
}

type FeedbackMapper struct{}

func NewFeedbackMapper() *FeedbackMapper {
	return &FeedbackMapper{}
}

func (m *FeedbackMapper) ToModel(f *entity.Feedback) *model.Feedback {
	if f == nil {
		return nil
	}
	return &model.Feedback{
		Id:        f.Id,
		SessionId: f.SessionId,
		Question:  f.Question,
		Answer:    f.Answer,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}

func (m *FeedbackMapper) ToEntity(f *model.Feedback) *entity.Feedback {
	if f == nil {
		return nil
	}
	return &entity.Feedback{
		Id:        f.Id,
		SessionId: f.SessionId,
		Question:  f.Question,
		Answer:    f.Answer,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}
