package splitter

import "strings"

// Separators tried in order when breaking report text into chunks.
// Page breaks first, then paragraphs, lines, sentences, words.
var defaultSeparators = []string{"\n\n\n", "\n\n", "\n", ". ", " ", ""}

// Splitter breaks long text into overlapping chunks of approximately
// ChunkSize runes, preferring to cut at natural boundaries.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split returns the chunks of text. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	pieces := s.split(text, defaultSeparators)

	chunks := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	if len([]rune(text)) <= s.ChunkSize {
		return []string{text}
	}

	sep := separators[len(separators)-1]
	next := separators
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			next = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = s.hardSplit(text)
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	// Merge parts back together greedily up to ChunkSize, recursing into
	// any single part that is still too large on its own.
	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	for _, part := range parts {
		if len([]rune(part)) > s.ChunkSize {
			flush()
			out = append(out, s.split(part, next)...)
			continue
		}
		if len([]rune(buf.String()))+len([]rune(part)) > s.ChunkSize {
			carry := s.overlapTail(buf.String())
			flush()
			buf.WriteString(carry)
		}
		buf.WriteString(part)
	}
	flush()

	return out
}

// hardSplit slices by rune count with overlap, used only when no separator helps.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// overlapTail returns the last Overlap runes of chunk, to be prepended to
// the next chunk so context is preserved across boundaries.
func (s *Splitter) overlapTail(chunk string) string {
	if s.Overlap == 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= s.Overlap {
		return chunk
	}
	return string(runes[len(runes)-s.Overlap:])
}
