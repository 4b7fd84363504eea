// Package pipeline composes the captioner and the tag extractor into one
// per-image operation. Process always yields exactly one ImageResult; a
// failure is carried as data in the result, never as an error or panic.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"imageCaptioner/captioner"
	"imageCaptioner/models"
	"imageCaptioner/staging"
)

// Extractor cleans a caption into tags. It must be total.
type Extractor interface {
	Extract(caption string) []string
}

type Pipeline struct {
	captioner captioner.Captioner
	extractor Extractor
	logger    *zap.Logger
}

func New(c captioner.Captioner, e Extractor, logger *zap.Logger) *Pipeline {
	return &Pipeline{captioner: c, extractor: e, logger: logger}
}

func (p *Pipeline) Process(ctx context.Context, file *staging.StagedFile) models.ImageResult {
	caption, err := p.captioner.Caption(ctx, file.Path)
	if err != nil {
		p.logger.Warn("Caption generation failed",
			zap.String("image", file.OriginalName),
			zap.Error(err),
		)
		return models.ImageResult{
			ImagePath: file.OriginalName,
			Error:     "caption generation failed: " + err.Error(),
		}
	}

	return models.ImageResult{
		ImagePath: file.OriginalName,
		Caption:   caption,
		Tags:      p.extractor.Extract(caption),
	}
}
