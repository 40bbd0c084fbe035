package implementation

import (
	"context"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/mapper"
	"subsea-agent-be/internal/model"
	"subsea-agent-be/internal/repository/contract"
	"subsea-agent-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ReportChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ReportChunkMapper
}

func NewReportChunkRepository(db *gorm.DB) contract.ReportChunkRepository {
	return &ReportChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewReportChunkMapper(),
	}
}

func (r *ReportChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ReportChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.ReportChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]*model.ReportChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c)
	}

	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return err
	}

	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ReportChunkRepositoryImpl) DeleteByReport(ctx context.Context, report string) error {
	return r.db.WithContext(ctx).Where("report = ?", report).Delete(&model.ReportChunk{}).Error
}

func (r *ReportChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReportChunk, error) {
	var models []*model.ReportChunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ReportChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.ReportChunk{}).Count(&count).Error
	return count, err
}

func (r *ReportChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredReportChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.ReportChunk
		Distance float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	// pgvector cosine distance: embedding <=> query_vector
	err := r.db.WithContext(ctx).
		Table("report_chunks").
		Select("report_chunks.*, embedding <=> ? as distance", queryVector).
		Order("distance ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredReportChunk, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredReportChunk{
			Chunk:    r.mapper.ToEntity(&res.ReportChunk),
			Distance: res.Distance,
		}
	}
	return scored, nil
}
