package imageindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"subsea-agent-be/internal/entity"
)

type promptEnsemble struct {
	Label   string
	Prompts []string
}

// Prompt ensembles for zero-shot classification. Several wordings per
// class are scored and averaged so the result is less sensitive to any
// single prompt formulation.
var defectEnsembles = []promptEnsemble{
	{"external corrosion", []string{
		"external corrosion on pipeline surface",
		"rust and oxidation on steel pipe",
		"corroded metal surface underwater",
	}},
	{"coating damage", []string{
		"coating damage and disbondment",
		"damaged protective coating on pipeline",
		"peeling paint or coating on subsea structure",
	}},
	{"crack or fracture", []string{
		"crack or fracture in metal",
		"fractured weld on pipeline",
		"visible crack in steel surface",
	}},
	{"dent or mechanical damage", []string{
		"dent or mechanical damage on pipe",
		"impact damage on pipeline surface",
		"deformed pipe wall from external force",
	}},
	{"marine growth", []string{
		"marine growth and biofouling on structure",
		"barnacles and algae covering pipeline",
		"heavy biofouling on subsea equipment",
	}},
	{"freespan", []string{
		"pipeline freespan over seabed",
		"unsupported pipeline span above seabed",
		"pipeline hanging free over scoured seabed",
	}},
	{"anode depletion", []string{
		"anode depletion and cathodic protection",
		"depleted sacrificial anode on pipeline",
		"worn cathodic protection anode",
	}},
	{"no visible defect", []string{
		"clean metal surface without defects",
		"intact pipeline in good condition",
		"undamaged subsea structure",
	}},
}

var severityEnsembles = []promptEnsemble{
	{"minor", []string{
		"minor cosmetic surface blemish",
		"superficial discoloration without damage",
	}},
	{"moderate", []string{
		"moderate visible damage requiring monitoring",
		"noticeable wear on structure surface",
	}},
	{"severe", []string{
		"severe structural damage on pipeline",
		"extensive deterioration of metal surface",
	}},
	{"critical", []string{
		"critical failure of pipeline integrity",
		"breach or rupture in pipe wall",
	}},
}

var severityRecommendations = map[string]string{
	"minor":    "Monitor at next scheduled inspection.",
	"moderate": "Schedule a detailed close visual inspection within 6 months.",
	"severe":   "Prioritize engineering assessment and re-inspect within 3 months.",
	"critical": "Immediate engineering assessment required; consider operational restrictions.",
}

// clipLogitScale stretches cosine similarities before softmax, matching
// how CLIP itself scales logits.
const clipLogitScale = 100.0

// Classify runs the zero-shot defect and severity ensembles on one
// image. Results are transient and never cached.
func (s *Service) Classify(ctx context.Context, image []byte) (*entity.DefectClassification, error) {
	imgEmb, err := s.clip.EmbedImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}
	imgEmb = l2Normalize(imgEmb)

	defects, err := s.scoreEnsembles(ctx, imgEmb, defectEnsembles)
	if err != nil {
		return nil, fmt.Errorf("score defect ensembles: %w", err)
	}
	severities, err := s.scoreEnsembles(ctx, imgEmb, severityEnsembles)
	if err != nil {
		return nil, fmt.Errorf("score severity ensembles: %w", err)
	}

	severity := severities[0].Label
	return &entity.DefectClassification{
		Primary:         defects[0].Label,
		Classes:         defects,
		Severity:        severity,
		SeverityClasses: severities,
		Recommendation:  severityRecommendations[severity],
	}, nil
}

func (s *Service) scoreEnsembles(ctx context.Context, imgEmb []float32, ensembles []promptEnsemble) ([]entity.DefectClass, error) {
	var prompts []string
	for _, e := range ensembles {
		prompts = append(prompts, e.Prompts...)
	}

	embs, err := s.clip.EmbedText(ctx, prompts)
	if err != nil {
		return nil, err
	}

	// Per-class mean over the prompt variants.
	means := make([]float64, len(ensembles))
	pos := 0
	for i, e := range ensembles {
		var sum float64
		for range e.Prompts {
			sum += dot(imgEmb, l2Normalize(embs[pos]))
			pos++
		}
		means[i] = sum / float64(len(e.Prompts))
	}

	probs := softmax(means, clipLogitScale)

	classes := make([]entity.DefectClass, len(ensembles))
	for i, e := range ensembles {
		classes[i] = entity.DefectClass{
			Label:       e.Label,
			Probability: math.Round(probs[i]*1000) / 10, // percent, 1 decimal
		}
	}
	sort.SliceStable(classes, func(a, b int) bool {
		return classes[a].Probability > classes[b].Probability
	})
	return classes, nil
}

func softmax(values []float64, scale float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	exps := make([]float64, len(values))
	for i, v := range values {
		exps[i] = math.Exp((v - max) * scale)
		sum += exps[i]
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}
