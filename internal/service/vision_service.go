package service

import (
	"context"

	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/imageindex"
)

type IVisionService interface {
	ClassifyImage(ctx context.Context, image []byte) (*dto.ClassifyImageResponse, error)
}

// visionService exposes ad-hoc defect classification for uploaded
// images. Uploads are classified and discarded, never indexed.
type visionService struct {
	images *imageindex.Service
}

func NewVisionService(images *imageindex.Service) IVisionService {
	return &visionService{images: images}
}

func (vs *visionService) ClassifyImage(ctx context.Context, image []byte) (*dto.ClassifyImageResponse, error) {
	result, err := vs.images.Classify(ctx, image)
	if err != nil {
		return nil, err
	}

	return &dto.ClassifyImageResponse{
		Primary:         result.Primary,
		Classes:         mapDefectClasses(result.Classes),
		Severity:        result.Severity,
		SeverityClasses: mapDefectClasses(result.SeverityClasses),
		Recommendation:  result.Recommendation,
	}, nil
}

func mapDefectClasses(in []entity.DefectClass) []dto.DefectClassDTO {
	out := make([]dto.DefectClassDTO, len(in))
	for i, c := range in {
		out[i] = dto.DefectClassDTO{Label: c.Label, Probability: c.Probability}
	}
	return out
}
