// Package store holds task state for the async batch endpoints. It is the
// single source of truth for status polling: one background writer mutates a
// task while any number of pollers read snapshots of it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"imageCaptioner/models"
)

var ErrTaskNotFound = errors.New("task not found")

type Store interface {
	// Create registers a new QUEUED task expecting total results.
	Create(ctx context.Context, total int) (*models.Task, error)
	// Get returns a snapshot of the task. Readers never observe a
	// partially-appended result.
	Get(ctx context.Context, id string) (*models.Task, error)
	// AppendResult appends one result. Only the runner owning the task calls it.
	AppendResult(ctx context.Context, id string, result models.ImageResult) error
	// SetStatus updates status and message, stamping CompletedAt on terminal.
	SetStatus(ctx context.Context, id string, status models.TaskStatus, message string) error
}

// NewTaskID builds an id with a time-derived prefix for coarse chronological
// ordering and a random suffix against collision.
func NewTaskID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + uuid.New().String()[:8]
}
