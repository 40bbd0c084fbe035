package memory

import (
	"sync"
	"time"

	"subsea-agent-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// MaxTurns bounds the per-session history kept in memory and sent to the
// model as context.
const MaxTurns = 12

// HistoryRepository keeps bounded per-session conversation history.
// Entries expire after an hour of inactivity; the durable copy lives in
// the session_turns table.
type HistoryRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewHistoryRepository() *HistoryRepository {
	// Default expiration of 1 hour, purge sweep every 10 minutes.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &HistoryRepository{
		cache: c,
	}
}

// Get returns a copy of the session's history, oldest first.
func (r *HistoryRepository) Get(sessionID string) []entity.ConversationTurn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(sessionID); found {
		turns := x.([]entity.ConversationTurn)
		out := make([]entity.ConversationTurn, len(turns))
		copy(out, turns)
		return out
	}
	return nil
}

// Append adds turns to the session, trims to the last MaxTurns and
// returns a copy of the trimmed history.
func (r *HistoryRepository) Append(sessionID string, turns ...entity.ConversationTurn) []entity.ConversationTurn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []entity.ConversationTurn
	if x, found := r.cache.Get(sessionID); found {
		history = x.([]entity.ConversationTurn)
	}
	history = append(history, turns...)
	if len(history) > MaxTurns {
		history = history[len(history)-MaxTurns:]
	}

	r.cache.Set(sessionID, history, cache.DefaultExpiration)

	out := make([]entity.ConversationTurn, len(history))
	copy(out, history)
	return out
}

// Replace overwrites the session history, trimming to MaxTurns. Used when
// reloading the durable copy after a restart.
func (r *HistoryRepository) Replace(sessionID string, turns []entity.ConversationTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(turns) > MaxTurns {
		turns = turns[len(turns)-MaxTurns:]
	}
	history := make([]entity.ConversationTurn, len(turns))
	copy(history, turns)
	r.cache.Set(sessionID, history, cache.DefaultExpiration)
}

func (r *HistoryRepository) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionID)
}
