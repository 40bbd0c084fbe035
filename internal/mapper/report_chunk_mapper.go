package mapper

import (
	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ReportChunkMapper struct{}

func NewReportChunkMapper() *ReportChunkMapper {
	return &ReportChunkMapper{}
}

func (m *ReportChunkMapper) ToEntity(c *model.ReportChunk) *entity.ReportChunk {
	if c == nil {
		return nil
	}
	return &entity.ReportChunk{
		Id:        c.Id,
		Report:    c.Report,
		Page:      c.Page,
		Content:   c.Content,
		Embedding: c.Embedding.Slice(),
		CreatedAt: c.CreatedAt,
	}
}

func (m *ReportChunkMapper) ToModel(c *entity.ReportChunk) *model.ReportChunk {
	if c == nil {
		return nil
	}
	return &model.ReportChunk{
		Id:        c.Id,
		Report:    c.Report,
		Page:      c.Page,
		Content:   c.Content,
		Embedding: pgvector.NewVector(c.Embedding),
		CreatedAt: c.CreatedAt,
	}
}

func (m *ReportChunkMapper) ToEntities(chunks []*model.ReportChunk) []*entity.ReportChunk {
	entities := make([]*entity.ReportChunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ReportChunkMapper) ToModels(chunks []*entity.ReportChunk) []*model.ReportChunk {
	models := make([]*model.ReportChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
