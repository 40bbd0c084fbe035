package implementation

import (
	"context"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/mapper"
	"subsea-agent-be/internal/model"
	"subsea-agent-be/internal/repository/contract"
	"subsea-agent-be/internal/repository/specification"

	"gorm.io/gorm"
)

type InteractionLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.InteractionLogMapper
}

func NewInteractionLogRepository(db *gorm.DB) contract.InteractionLogRepository {
	return &InteractionLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewInteractionLogMapper(),
	}
}

func (r *InteractionLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *InteractionLogRepositoryImpl) Create(ctx context.Context, log *entity.InteractionLog) error {
	m := r.mapper.ToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.ToEntity(m)
	return nil
}

func (r *InteractionLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.InteractionLog, error) {
	var models []*model.InteractionLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *InteractionLogRepositoryImpl) Aggregate(ctx context.Context) (*contract.InteractionStats, error) {
	stats := &contract.InteractionStats{}
	db := r.db.WithContext(ctx).Model(&model.InteractionLog{})

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("cached = true").Count(&stats.CacheHits).Error; err != nil {
		return nil, err
	}

	var avgCached, avgUncached *float64
	if err := db.Session(&gorm.Session{}).Where("cached = true").
		Select("AVG(response_time_ms)").Scan(&avgCached).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("cached = false").
		Select("AVG(response_time_ms)").Scan(&avgUncached).Error; err != nil {
		return nil, err
	}
	if avgCached != nil {
		stats.AvgLatencyCachedMs = *avgCached
	}
	if avgUncached != nil {
		stats.AvgLatencyUncachedMs = *avgUncached
	}

	if err := db.Session(&gorm.Session{}).
		Distinct("session_id").Count(&stats.DistinctSessions).Error; err != nil {
		return nil, err
	}

	type row struct {
		Question string
		Count    int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("interaction_logs").
		Select("question, COUNT(*) as count").
		Group("question").
		Order("count DESC").
		Limit(10).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, q := range rows {
		stats.TopQuestions = append(stats.TopQuestions, contract.QuestionCount{
			Question: q.Question,
			Count:    q.Count,
		})
	}

	return stats, nil
}

func (r *InteractionLogRepositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.InteractionLog{}).Error
}
