package dto

import "time"

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type QuestionCountDTO struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

type StatsResponse struct {
	TotalInteractions    int64              `json:"total_interactions"`
	CacheHits            int64              `json:"cache_hits"`
	CacheHitRate         float64            `json:"cache_hit_rate"`
	AvgLatencyCachedMs   float64            `json:"avg_latency_cached_ms"`
	AvgLatencyUncachedMs float64            `json:"avg_latency_uncached_ms"`
	DistinctSessions     int64              `json:"distinct_sessions"`
	TopQuestions         []QuestionCountDTO `json:"top_questions"`
	CacheEntries         int                `json:"cache_entries"`
	CacheHitCounter      int64              `json:"cache_hit_counter"`
	IndexedImages        int                `json:"indexed_images"`
}

type InteractionLogDTO struct {
	SessionId      string    `json:"session_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Sources        []string  `json:"sources"`
	Cached         bool      `json:"cached"`
	ResponseTimeMs int       `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
