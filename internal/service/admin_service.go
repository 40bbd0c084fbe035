package service

import (
	"context"
	"math"

	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/imageindex"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/repository/specification"
	"subsea-agent-be/internal/repository/unitofwork"
	"subsea-agent-be/internal/semcache"
)

type IAdminService interface {
	Stats(ctx context.Context) (*dto.StatsResponse, error)
	Logs(ctx context.Context, limit, offset int) ([]*dto.InteractionLogDTO, error)
	AppLogs(level string, limit, offset int) ([]logger.LogEntry, error)
	ClearCache(ctx context.Context)
	ClearStats(ctx context.Context) error
	RebuildIndex(ctx context.Context) (int, error)
}

type adminService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *semcache.Cache // nil when caching is disabled
	images     *imageindex.Service
	log        logger.ILogger
}

func NewAdminService(
	uowFactory unitofwork.RepositoryFactory,
	cache *semcache.Cache,
	images *imageindex.Service,
	log logger.ILogger,
) IAdminService {
	return &adminService{
		uowFactory: uowFactory,
		cache:      cache,
		images:     images,
		log:        log,
	}
}

func (as *adminService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)
	agg, err := uow.InteractionLogRepository().Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	hitRate := 0.0
	if agg.Total > 0 {
		hitRate = math.Round(float64(agg.CacheHits)/float64(agg.Total)*1000) / 10
	}

	top := make([]dto.QuestionCountDTO, len(agg.TopQuestions))
	for i, q := range agg.TopQuestions {
		top[i] = dto.QuestionCountDTO{Question: q.Question, Count: q.Count}
	}

	res := &dto.StatsResponse{
		TotalInteractions:    agg.Total,
		CacheHits:            agg.CacheHits,
		CacheHitRate:         hitRate,
		AvgLatencyCachedMs:   math.Round(agg.AvgLatencyCachedMs),
		AvgLatencyUncachedMs: math.Round(agg.AvgLatencyUncachedMs),
		DistinctSessions:     agg.DistinctSessions,
		TopQuestions:         top,
		IndexedImages:        as.images.Count(),
	}
	if as.cache != nil {
		res.CacheEntries = as.cache.Size()
		res.CacheHitCounter = as.cache.TotalHits()
	}
	return res, nil
}

func (as *adminService) Logs(ctx context.Context, limit, offset int) ([]*dto.InteractionLogDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	uow := as.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.InteractionLogRepository().FindAll(ctx,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.InteractionLogDTO, len(logs))
	for i, l := range logs {
		out[i] = &dto.InteractionLogDTO{
			SessionId:      l.SessionId,
			Question:       l.Question,
			Answer:         l.Answer,
			Sources:        l.Sources,
			Cached:         l.Cached,
			ResponseTimeMs: l.ResponseTimeMs,
			CreatedAt:      l.CreatedAt,
		}
	}
	return out, nil
}

func (as *adminService) AppLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return as.log.GetLogs(level, limit, offset)
}

func (as *adminService) ClearCache(ctx context.Context) {
	if as.cache == nil {
		return
	}
	as.cache.Clear(ctx)
	as.log.Info("admin", "semantic cache cleared", nil)
}

func (as *adminService) ClearStats(ctx context.Context) error {
	uow := as.uowFactory.NewUnitOfWork(ctx)
	if err := uow.InteractionLogRepository().DeleteAll(ctx); err != nil {
		return err
	}
	as.log.Info("admin", "interaction stats cleared", nil)
	return nil
}

func (as *adminService) RebuildIndex(ctx context.Context) (int, error) {
	if err := as.images.Rebuild(ctx); err != nil {
		return 0, err
	}
	return as.images.Count(), nil
}
