// Package runner executes one batch-captioning task to its terminal status.
package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"imageCaptioner/models"
	"imageCaptioner/staging"
	"imageCaptioner/store"
)

// Processor produces exactly one result per staged file.
type Processor interface {
	Process(ctx context.Context, file *staging.StagedFile) models.ImageResult
}

// Cleaner disposes of staged files once their task is terminal.
type Cleaner interface {
	RemoveAll(files []*staging.StagedFile)
}

type Runner struct {
	store     store.Store
	processor Processor
	cleaner   Cleaner
	logger    *zap.Logger
}

func New(s store.Store, p Processor, c Cleaner, logger *zap.Logger) *Runner {
	return &Runner{store: s, processor: p, cleaner: c, logger: logger}
}

// Run processes the staged files in submission order, streaming each result
// into the store so pollers see partial progress. Failures never stop the
// batch; every file is attempted. Staged-file ownership transfers to the
// runner, which cleans them up once the task is terminal.
func (r *Runner) Run(ctx context.Context, taskID string, files []*staging.StagedFile) {
	defer r.cleaner.RemoveAll(files)

	msg := fmt.Sprintf("Processing %d images.", len(files))
	if err := r.store.SetStatus(ctx, taskID, models.StatusProcessing, msg); err != nil {
		r.logger.Error("Failed to mark task processing",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return
	}

	failed := 0
	for _, file := range files {
		result := r.processor.Process(ctx, file)
		if result.Error != "" {
			failed++
		}
		if err := r.store.AppendResult(ctx, taskID, result); err != nil {
			r.logger.Error("Failed to append result",
				zap.String("task_id", taskID),
				zap.String("image", file.OriginalName),
				zap.Error(err),
			)
		}
	}

	succeeded := len(files) - failed
	status := models.StatusCompleted
	switch {
	case failed == 0:
		status = models.StatusCompleted
	case failed == len(files):
		status = models.StatusFailed
	default:
		status = models.StatusPartial
	}

	summary := fmt.Sprintf("Processing complete. %d/%d images captioned successfully.", succeeded, len(files))
	if err := r.store.SetStatus(ctx, taskID, status, summary); err != nil {
		r.logger.Error("Failed to mark task terminal",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("Batch task finished",
		zap.String("task_id", taskID),
		zap.String("status", string(status)),
		zap.Int("succeeded", succeeded),
		zap.Int("total", len(files)),
	)
}
