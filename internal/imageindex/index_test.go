package imageindex

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/pkg/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClip struct {
	textEmb func(text string) []float32
}

func (f *fakeClip) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f *fakeClip) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.textEmb != nil {
			out[i] = f.textEmb(t)
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func (f *fakeClip) ClassifyFineTuned(ctx context.Context, image []byte) (*vision.FineTunedResult, error) {
	return nil, vision.ErrClassifierUnavailable
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }
func (nopLogger) GetLogs(string, int, int) ([]logger.LogEntry, error) {
	return nil, nil
}

func newTestService(t *testing.T, idx *Index) *Service {
	t.Helper()
	dir := t.TempDir()
	s := NewService(&fakeClip{}, dir, filepath.Join(dir, "index.gob"), nopLogger{})
	s.index = idx
	return s
}

func vec(sim float64) []float32 {
	// Unit vector whose dot with the query [1,0] equals sim.
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestNormalizeScoreBounds(t *testing.T) {
	assert.Equal(t, 0, normalizeScore(0.10), "below band clamps to 0")
	assert.Equal(t, 0, normalizeScore(SimMin))
	assert.Equal(t, 100, normalizeScore(SimMax))
	assert.Equal(t, 100, normalizeScore(0.55), "above band clamps to 100")
	assert.Equal(t, 40, normalizeScore(0.25))
}

func TestSearchFiltersByThreshold(t *testing.T) {
	s := newTestService(t, &Index{
		Paths:      []string{"/img/a.jpg", "/img/b.jpg", "/img/c.jpg"},
		Embeddings: [][]float32{l2Normalize(vec(0.30)), l2Normalize(vec(0.05)), l2Normalize(vec(0.22))},
		Labels:     []string{"la", "lb", "lc"},
		Dimensions: [][2]int{{10, 10}, {20, 20}, {30, 30}},
	})

	results, err := s.Search(context.Background(), "corrosion", 10)
	require.NoError(t, err)

	// b is under the threshold and must be filtered out.
	require.Len(t, results, 2)
	assert.Equal(t, "la", results[0].Label)
	assert.Equal(t, "lc", results[1].Label)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchFallsBackWhenNothingClearsThreshold(t *testing.T) {
	s := newTestService(t, &Index{
		Paths:      []string{"/img/a.jpg", "/img/b.jpg"},
		Embeddings: [][]float32{l2Normalize(vec(0.05)), l2Normalize(vec(0.10))},
		Labels:     []string{"la", "lb"},
		Dimensions: [][2]int{{1, 1}, {2, 2}},
	})

	results, err := s.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "populated index never returns empty")
	assert.Equal(t, "lb", results[0].Label)
}

func TestSearchEmptyIndex(t *testing.T) {
	s := newTestService(t, &Index{})

	results, err := s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCapsAtK(t *testing.T) {
	idx := &Index{}
	for i := 0; i < 20; i++ {
		idx.Paths = append(idx.Paths, filepath.Join("/img", "x.jpg"))
		idx.Embeddings = append(idx.Embeddings, l2Normalize(vec(0.30)))
		idx.Labels = append(idx.Labels, "l")
		idx.Dimensions = append(idx.Dimensions, [2]int{1, 1})
	}
	s := newTestService(t, idx)

	results, err := s.Search(context.Background(), "q", 4)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestResolvePathExactAndByFilename(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "corrosion")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	file := filepath.Join(sub, "kp12.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	s := NewService(&fakeClip{}, dir, filepath.Join(dir, "index.gob"), nopLogger{})

	got, ok := s.ResolvePath("corrosion/kp12.jpg")
	require.True(t, ok)
	assert.Equal(t, file, got)

	// Wrong directory, correct filename: found by walking.
	got, ok = s.ResolvePath("wrong/kp12.jpg")
	require.True(t, ok)
	assert.Equal(t, file, got)

	_, ok = s.ResolvePath("missing.jpg")
	assert.False(t, ok)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")
	s := NewService(&fakeClip{}, dir, path, nopLogger{})

	idx := &Index{
		Paths:      []string{filepath.Join(dir, "a.jpg")},
		Embeddings: [][]float32{{1, 0}},
		Labels:     []string{"label"},
		Dimensions: [][2]int{{640, 480}},
	}
	require.NoError(t, s.save(idx))

	s2 := NewService(&fakeClip{}, dir, path, nopLogger{})
	require.NoError(t, s2.Load(context.Background()))
	assert.Equal(t, 1, s2.Count())
}

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := softmax([]float64{0.3, 0.2, 0.1}, clipLogitScale)

	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[0], probs[1])
	assert.Greater(t, probs[1], probs[2])
}

func TestClassifyRanksAndRecommends(t *testing.T) {
	dir := t.TempDir()
	clip := &fakeClip{
		textEmb: func(text string) []float32 {
			// Make corrosion prompts align with the image embedding and
			// severe prompts dominate the severity ensemble.
			switch text {
			case "external corrosion on pipeline surface",
				"rust and oxidation on steel pipe",
				"corroded metal surface underwater":
				return []float32{1, 0}
			case "severe structural damage on pipeline",
				"extensive deterioration of metal surface":
				return []float32{1, 0}
			default:
				return []float32{0, 1}
			}
		},
	}
	s := NewService(clip, dir, filepath.Join(dir, "index.gob"), nopLogger{})

	res, err := s.Classify(context.Background(), []byte("image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "external corrosion", res.Primary)
	assert.Equal(t, "severe", res.Severity)
	assert.Equal(t, severityRecommendations["severe"], res.Recommendation)
	assert.Len(t, res.Classes, len(defectEnsembles))
	assert.Len(t, res.SeverityClasses, len(severityEnsembles))

	// Ranked descending.
	for i := 1; i < len(res.Classes); i++ {
		assert.GreaterOrEqual(t, res.Classes[i-1].Probability, res.Classes[i].Probability)
	}
}
