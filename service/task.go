// Package service sits between the HTTP handlers and the task machinery:
// it creates tasks, schedules their background runs, and maps stored state
// into status responses.
package service

import (
	"context"

	"go.uber.org/zap"

	"imageCaptioner/dto"
	"imageCaptioner/jobs"
	"imageCaptioner/models"
	"imageCaptioner/staging"
	"imageCaptioner/store"
)

// Scheduler accepts background jobs, rejecting when saturated.
type Scheduler interface {
	Enqueue(job jobs.Job) error
}

// BatchRunner drives one task to a terminal status.
type BatchRunner interface {
	Run(ctx context.Context, taskID string, files []*staging.StagedFile)
}

type TaskService struct {
	store     store.Store
	scheduler Scheduler
	runner    BatchRunner
	logger    *zap.Logger
}

func NewTaskService(s store.Store, scheduler Scheduler, runner BatchRunner, logger *zap.Logger) *TaskService {
	return &TaskService{
		store:     s,
		scheduler: scheduler,
		runner:    runner,
		logger:    logger,
	}
}

// SubmitBatch creates a task for the staged files and schedules its run.
// If scheduling fails the task is marked FAILED rather than left QUEUED
// forever, and the error is returned for the handler to map.
func (s *TaskService) SubmitBatch(ctx context.Context, files []*staging.StagedFile) (string, error) {
	task, err := s.store.Create(ctx, len(files))
	if err != nil {
		return "", err
	}

	job := func(jobCtx context.Context) {
		s.runner.Run(jobCtx, task.ID, files)
	}
	if err := s.scheduler.Enqueue(job); err != nil {
		if setErr := s.store.SetStatus(ctx, task.ID, models.StatusFailed, "Could not schedule background processing."); setErr != nil {
			s.logger.Error("Failed to mark unscheduled task failed",
				zap.String("task_id", task.ID),
				zap.Error(setErr),
			)
		}
		return "", err
	}

	s.logger.Info("Batch task scheduled",
		zap.String("task_id", task.ID),
		zap.Int("total", len(files)),
	)

	return task.ID, nil
}

func (s *TaskService) TaskStatus(ctx context.Context, taskID string) (*dto.AsyncTaskStatus, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	results := task.Results
	if results == nil {
		results = []models.ImageResult{}
	}

	return &dto.AsyncTaskStatus{
		TaskID:  task.ID,
		Status:  task.Status,
		Message: task.Message,
		Result:  results,
	}, nil
}
