package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/retrieval"
	"subsea-agent-be/pkg/llm"
)

const (
	ToolSearchReports  = "search_reports"
	ToolSearchImages   = "search_images"
	ToolClassifyDefect = "classify_defect"
	ToolCheckStandard  = "check_standard"

	defaultImageResults = 8
	defaultStandard     = "DNV-RP-F116"
)

// PassageRetriever is the retrieval pipeline surface the tools need.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, k int, useRerank bool) ([]entity.RetrievedPassage, error)
}

// ImageSearcher is the visual index surface the tools need.
type ImageSearcher interface {
	Search(ctx context.Context, query string, k int) ([]entity.ImageResult, error)
	Classify(ctx context.Context, image []byte) (*entity.DefectClassification, error)
	ResolvePath(imagePath string) (string, bool)
}

// NewDefaultRegistry wires the four standard tools over the retrieval
// pipeline and the visual index.
func NewDefaultRegistry(retriever PassageRetriever, images ImageSearcher) *Registry {
	return NewRegistry(
		searchReportsTool(retriever),
		searchImagesTool(images),
		classifyDefectTool(images),
		checkStandardTool(retriever),
	)
}

// retrievalResult renders passages as "Sources: ..." plus the context
// block, the format the orchestrator parses sources back out of.
func retrievalResult(passages []entity.RetrievedPassage) string {
	labels := make([]string, len(passages))
	for i, p := range passages {
		labels[i] = p.SourceLabel
	}
	return fmt.Sprintf("Sources: %s\n\n%s", strings.Join(labels, ", "), retrieval.BuildContextBlock(passages))
}

func searchReportsTool(retriever PassageRetriever) Tool {
	return Tool{
		Name:        ToolSearchReports,
		Description: "Search inspection reports and technical documents for information about subsea pipelines, corrosion, standards, maintenance procedures, and inspection findings.",
		Parameters: []llm.ToolParam{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query := stringArg(args, "query")
			if query == "" {
				return "No relevant report sections found.", nil
			}
			passages, err := retriever.Retrieve(ctx, query, retrieval.TopK, true)
			if err != nil {
				return "", err
			}
			if len(passages) == 0 {
				return "No relevant report sections found.", nil
			}
			return retrievalResult(passages), nil
		},
	}
}

func searchImagesTool(images ImageSearcher) Tool {
	return Tool{
		Name:        ToolSearchImages,
		Description: "Search the inspection image database using CLIP visual similarity. Use ONLY when the user explicitly asks to see images, photos, or visual examples.",
		Parameters: []llm.ToolParam{
			{Name: "query", Type: "string", Description: "Visual search query", Required: true},
			{Name: "num_results", Type: "integer", Description: "Number of images to return", Required: false},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query := stringArg(args, "query")
			k := intArg(args, "num_results", defaultImageResults)

			results, err := images.Search(ctx, query, k)
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return "No relevant images found.", nil
			}

			lines := make([]string, len(results))
			for i, img := range results {
				lines[i] = fmt.Sprintf("%d. [%d%%] %s - path: %s", i+1, int(img.Score), img.Label, img.Path)
			}
			return fmt.Sprintf("Found %d images:\n%s\n\nReference the most relevant image paths in your answer using [IMAGE: path] tags.",
				len(results), strings.Join(lines, "\n")), nil
		},
	}
}

func classifyDefectTool(images ImageSearcher) Tool {
	return Tool{
		Name:        ToolClassifyDefect,
		Description: "Classify the type and severity of a defect in an inspection image using CLIP zero-shot classification. Provide an image path from search_images results.",
		Parameters: []llm.ToolParam{
			{Name: "image_path", Type: "string", Description: "Image path from search_images results", Required: true},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			imagePath := stringArg(args, "image_path")

			fullPath, ok := images.ResolvePath(imagePath)
			if !ok {
				return fmt.Sprintf("Image not found: %s", imagePath), nil
			}

			raw, err := os.ReadFile(fullPath)
			if err != nil {
				return "", fmt.Errorf("read image: %w", err)
			}

			result, err := images.Classify(ctx, raw)
			if err != nil {
				return "", err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "DEFECT ANALYSIS: %s\n\n", imagePath)
			b.WriteString("Defect Classification:\n")
			for _, d := range result.Classes {
				fmt.Fprintf(&b, "  %.1f%% - %s\n", d.Probability, d.Label)
			}
			severityProb := 0.0
			if len(result.SeverityClasses) > 0 {
				severityProb = result.SeverityClasses[0].Probability
			}
			fmt.Fprintf(&b, "\nSeverity: %s (%.1f%%)", strings.ToUpper(result.Severity), severityProb)
			fmt.Fprintf(&b, "\nRecommendation: %s", result.Recommendation)
			return b.String(), nil
		},
	}
}

func checkStandardTool(retriever PassageRetriever) Tool {
	return Tool{
		Name:        ToolCheckStandard,
		Description: "Look up acceptance criteria for a defect type according to industry standards. Use after classify_defect for actionable recommendations.",
		Parameters: []llm.ToolParam{
			{Name: "defect_type", Type: "string", Description: "Defect type to look up", Required: true},
			{Name: "standard", Type: "string", Description: "Standard designation, defaults to DNV-RP-F116", Required: false},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			defectType := stringArg(args, "defect_type")
			standard := stringArg(args, "standard")
			if standard == "" {
				standard = defaultStandard
			}

			query := fmt.Sprintf("%s acceptance criteria %s recommended action", defectType, standard)
			passages, err := retriever.Retrieve(ctx, query, retrieval.TopK, true)
			if err != nil {
				return "", err
			}
			if len(passages) == 0 {
				return fmt.Sprintf("No specific %s guidance found for '%s'.", standard, defectType), nil
			}
			return retrievalResult(passages), nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}
