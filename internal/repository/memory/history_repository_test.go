package memory

import (
	"fmt"
	"testing"

	"subsea-agent-be/internal/entity"

	"github.com/stretchr/testify/assert"
)

func turn(role, content string) entity.ConversationTurn {
	return entity.ConversationTurn{Role: role, Content: content}
}

func TestAppendAndGet(t *testing.T) {
	r := NewHistoryRepository()

	got := r.Append("s1", turn("user", "hello"), turn("assistant", "hi"))
	assert.Len(t, got, 2)

	history := r.Get("s1")
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "hi", history[1].Content)
}

func TestAppendBoundsHistory(t *testing.T) {
	r := NewHistoryRepository()

	for i := 0; i < 10; i++ {
		r.Append("s1", turn("user", fmt.Sprintf("q%d", i)), turn("assistant", fmt.Sprintf("a%d", i)))
	}

	history := r.Get("s1")
	assert.Len(t, history, MaxTurns)
	// Oldest surviving turn is q4 (20 turns total, last 12 kept).
	assert.Equal(t, "q4", history[0].Content)
	assert.Equal(t, "a9", history[len(history)-1].Content)
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewHistoryRepository()
	r.Append("s1", turn("user", "original"))

	history := r.Get("s1")
	history[0].Content = "mutated"

	assert.Equal(t, "original", r.Get("s1")[0].Content)
}

func TestSessionsAreIsolated(t *testing.T) {
	r := NewHistoryRepository()
	r.Append("s1", turn("user", "one"))
	r.Append("s2", turn("user", "two"))

	assert.Len(t, r.Get("s1"), 1)
	assert.Equal(t, "two", r.Get("s2")[0].Content)
}

func TestClear(t *testing.T) {
	r := NewHistoryRepository()
	r.Append("s1", turn("user", "hello"))
	r.Clear("s1")

	assert.Nil(t, r.Get("s1"))
}

func TestReplaceTrims(t *testing.T) {
	r := NewHistoryRepository()

	turns := make([]entity.ConversationTurn, 0, 20)
	for i := 0; i < 20; i++ {
		turns = append(turns, turn("user", fmt.Sprintf("t%d", i)))
	}
	r.Replace("s1", turns)

	history := r.Get("s1")
	assert.Len(t, history, MaxTurns)
	assert.Equal(t, "t8", history[0].Content)
}
