package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitShortText(t *testing.T) {
	s := New(1000, 150)
	chunks := s.Split("short report text")
	assert.Equal(t, []string{"short report text"}, chunks)
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := New(50, 10)
	text := strings.Repeat("pipeline inspection finding. ", 20)

	chunks := s.Split(text)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 50)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := New(40, 0)
	text := "first paragraph about corrosion.\n\nsecond paragraph about freespan."

	chunks := s.Split(text)
	assert.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "first paragraph")
	assert.Contains(t, chunks[1], "second paragraph")
}

func TestSplitCoversAllContent(t *testing.T) {
	s := New(30, 5)
	text := "aaaa bbbb cccc dddd eeee ffff gggg hhhh iiii jjjj"

	joined := strings.Join(s.Split(text), "")
	// With overlap the join can repeat content but must not lose any word.
	for _, word := range strings.Fields(text) {
		assert.Contains(t, joined, word)
	}
}

func TestSplitHardSplitWithoutSeparators(t *testing.T) {
	s := New(10, 2)
	text := strings.Repeat("x", 25)

	chunks := s.Split(text)
	assert.GreaterOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
}

func TestSplitDropsWhitespaceOnlyChunks(t *testing.T) {
	s := New(10, 0)
	chunks := s.Split("abcdefghij\n\n\n\n\n\n\n\n\n\nklmno")
	for _, c := range chunks {
		assert.NotEqual(t, "", strings.TrimSpace(c))
	}
}
