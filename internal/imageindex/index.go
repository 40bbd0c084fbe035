package imageindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/pkg/vision"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// Empirical cosine similarity band of CLIP text-to-image matches,
	// used to stretch raw scores into a 0-100 display range.
	SimMin = 0.15
	SimMax = 0.40
	// Threshold below which an image does not count as relevant.
	Threshold = 0.18
	// TopKImages is the default result count for visual search.
	TopKImages = 16
)

// captionPrompts are the zero-shot labels assigned during index build.
var captionPrompts = []string{
	"external corrosion on pipeline surface",
	"internal corrosion damage",
	"marine growth and biofouling on structure",
	"coating damage and disbondment",
	"pipeline freespan over seabed",
	"anode depletion and cathodic protection",
	"crack or fracture in metal",
	"dent or mechanical damage on pipe",
	"subsea pipeline on seabed",
	"ROV inspection of underwater structure",
	"weld defect or anomaly",
	"scour and erosion around pipeline",
	"clean metal surface without defects",
	"rust and oxidation on steel",
	"underwater concrete structure damage",
	"valve or fitting inspection",
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// ClipClient is the slice of the CLIP sidecar the index needs.
type ClipClient interface {
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
	ClassifyFineTuned(ctx context.Context, image []byte) (*vision.FineTunedResult, error)
}

// Index is the persisted visual index. Embeddings are L2-normalized so
// dot product equals cosine similarity.
type Index struct {
	Paths      []string
	Embeddings [][]float32
	Labels     []string
	Dimensions [][2]int
}

// Service owns the visual index and answers searches and
// classifications against it.
type Service struct {
	mu        sync.RWMutex
	index     *Index
	clip      ClipClient
	imagesDir string
	indexPath string
	log       logger.ILogger
}

func NewService(clip ClipClient, imagesDir, indexPath string, log logger.ILogger) *Service {
	return &Service{
		clip:      clip,
		imagesDir: imagesDir,
		indexPath: indexPath,
		log:       log,
	}
}

// Load reuses the persisted index when present, otherwise builds it.
func (s *Service) Load(ctx context.Context) error {
	if data, err := os.ReadFile(s.indexPath); err == nil {
		var idx Index
		if derr := gob.NewDecoder(bytes.NewReader(data)).Decode(&idx); derr == nil {
			s.mu.Lock()
			s.index = &idx
			s.mu.Unlock()
			s.log.Info("imageindex", "loaded persisted index", map[string]interface{}{
				"images": len(idx.Paths),
			})
			return nil
		}
		s.log.Warn("imageindex", "persisted index unreadable, rebuilding", nil)
	}
	return s.Build(ctx)
}

// Rebuild drops the persisted index and recomputes everything.
func (s *Service) Rebuild(ctx context.Context) error {
	if err := os.Remove(s.indexPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove index file: %w", err)
	}
	return s.Build(ctx)
}

// Build walks the image directory, embeds and captions every image, and
// persists the result. Individual image failures are skipped.
func (s *Service) Build(ctx context.Context) error {
	var paths []string
	err := filepath.WalkDir(s.imagesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk images dir: %w", err)
	}
	sort.Strings(paths)

	captionEmbeddings, err := s.clip.EmbedText(ctx, captionPrompts)
	if err != nil {
		return fmt.Errorf("embed caption prompts: %w", err)
	}

	idx := &Index{}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("imageindex", "skipping unreadable image", map[string]interface{}{
				"path": path, "error": err.Error(),
			})
			continue
		}

		emb, err := s.clip.EmbedImage(ctx, raw)
		if err != nil {
			s.log.Warn("imageindex", "skipping image, embed failed", map[string]interface{}{
				"path": path, "error": err.Error(),
			})
			continue
		}
		emb = l2Normalize(emb)

		width, height := decodeDimensions(raw)
		label := s.caption(ctx, raw, emb, captionEmbeddings)

		idx.Paths = append(idx.Paths, path)
		idx.Embeddings = append(idx.Embeddings, emb)
		idx.Labels = append(idx.Labels, label)
		idx.Dimensions = append(idx.Dimensions, [2]int{width, height})

		if (i+1)%10 == 0 {
			s.log.Info("imageindex", "indexing progress", map[string]interface{}{
				"done": i + 1, "total": len(paths),
			})
		}
	}

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()

	if err := s.save(idx); err != nil {
		s.log.Warn("imageindex", "persist failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.log.Info("imageindex", "index built", map[string]interface{}{
		"images": len(idx.Paths),
	})
	return nil
}

// caption picks the best zero-shot caption, unless the fine-tuned
// classifier is configured, in which case its top label wins.
func (s *Service) caption(ctx context.Context, raw []byte, imgEmb []float32, captionEmbeddings [][]float32) string {
	if res, err := s.clip.ClassifyFineTuned(ctx, raw); err == nil && res.Label != "" {
		return res.Label
	}

	best := -1
	bestSim := math.Inf(-1)
	for i, capEmb := range captionEmbeddings {
		sim := dot(imgEmb, l2Normalize(capEmb))
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if best < 0 {
		return "inspection image"
	}
	return captionPrompts[best]
}

func (s *Service) save(idx *Index) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(idx); err != nil {
		return err
	}
	if dir := filepath.Dir(s.indexPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.indexPath, buf.Bytes(), 0o644)
}

// Count returns the number of indexed images.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0
	}
	return len(s.index.Paths)
}

// Search returns the top k images for a text query, scored 0-100.
func (s *Service) Search(ctx context.Context, query string, k int) ([]entity.ImageResult, error) {
	if k <= 0 {
		k = TopKImages
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx == nil || len(idx.Paths) == 0 {
		return []entity.ImageResult{}, nil
	}

	embs, err := s.clip.EmbedText(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryEmb := l2Normalize(embs[0])

	sims := make([]float64, len(idx.Embeddings))
	for i, emb := range idx.Embeddings {
		sims[i] = dot(emb, queryEmb)
	}

	// Threshold filter, falling back to the full set so a populated
	// index never yields an empty result.
	var candidates []int
	for i, sim := range sims {
		if sim >= Threshold {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		candidates = make([]int, len(sims))
		for i := range sims {
			candidates[i] = i
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		return sims[candidates[a]] > sims[candidates[b]]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]entity.ImageResult, 0, len(candidates))
	for _, i := range candidates {
		dims := [2]int{0, 0}
		if i < len(idx.Dimensions) {
			dims = idx.Dimensions[i]
		}
		results = append(results, entity.ImageResult{
			Path:     s.relPath(idx.Paths[i]),
			Label:    idx.Labels[i],
			Score:    float64(normalizeScore(sims[i])),
			RawScore: math.Round(sims[i]*1000) / 1000,
			Width:    dims[0],
			Height:   dims[1],
		})
	}
	return results, nil
}

func (s *Service) relPath(abs string) string {
	rel, err := filepath.Rel(s.imagesDir, abs)
	if err != nil {
		rel = filepath.Join(filepath.Base(filepath.Dir(abs)), filepath.Base(abs))
	}
	return filepath.ToSlash(rel)
}

// ResolvePath maps a (possibly relative) image path to an absolute file
// path, falling back to a filename search under the images root.
func (s *Service) ResolvePath(imagePath string) (string, bool) {
	full := filepath.Join(s.imagesDir, filepath.FromSlash(imagePath))
	if _, err := os.Stat(full); err == nil {
		return full, true
	}

	name := filepath.Base(filepath.FromSlash(imagePath))
	var found string
	_ = filepath.WalkDir(s.imagesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(path) == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if found != "" {
		return found, true
	}
	return "", false
}

// normalizeScore maps a raw cosine similarity onto 0-100 by clamping to
// the empirical band and min-max scaling.
func normalizeScore(raw float64) int {
	clamped := math.Max(SimMin, math.Min(SimMax, raw))
	pct := (clamped - SimMin) / (SimMax - SimMin)
	return int(math.Round(pct * 100))
}

func decodeDimensions(raw []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func l2Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
